package progress

import (
	"math"
	"sort"
	"time"

	"github.com/okian/krpace/internal/domain/model"
)

const quartersPerYear = 4

// QuarterProgress is the progress of one quarter target.
//
// CurrentValue, Target and RawProgress are never clamped; Progress is.
// Under cumulative aggregation CurrentValue and Target are deltas from the
// KR's start value.
type QuarterProgress struct {
	Quarter          int              `json:"quarter"`
	QuarterTargetID  string           `json:"quarter_target_id,omitempty"`
	PeriodStart      time.Time        `json:"period_start"`
	PeriodEnd        time.Time        `json:"period_end"`
	CurrentValue     float64          `json:"current_value"`
	Target           float64          `json:"target"`
	Progress         float64          `json:"progress"`
	RawProgress      float64          `json:"raw_progress"`
	ExpectedProgress float64          `json:"expected_progress"`
	ExpectedValue    float64          `json:"expected_value"`
	PaceStatus       model.PaceStatus `json:"pace_status"`
	PaceRatio        float64          `json:"pace_ratio"`
	ForecastValue    *float64         `json:"forecast_value"`
	WillComplete     bool             `json:"will_complete"`
	IsCurrent        bool             `json:"is_current"`
	IsPast           bool             `json:"is_past"`
	IsFuture         bool             `json:"is_future"`
	IsComplete       bool             `json:"is_complete"`
	DaysRemaining    int              `json:"days_remaining"`
}

// Summary rolls quarter results up to the year.
type Summary struct {
	CompletedQuarters int  `json:"completed_quarters"`
	TotalQuarters     int  `json:"total_quarters"`
	CurrentQuarter    int  `json:"current_quarter"`
	IsOnTrackForYear  bool `json:"is_on_track_for_year"`
}

// Quarters computes one QuarterProgress per quarter target of planYear
// (0 means the KR's plan year, then asOf's year), ordered by quarter.
// Targets for other plan years or outside 1-4 are ignored. With no targets
// the result is empty.
func (e *Engine) Quarters(targets []model.QuarterTarget, kr model.KeyResult, checkIns []model.CheckIn, planYear int, asOf time.Time) []QuarterProgress {
	asOf = e.ResolveAsOf(asOf)
	year := e.planYear(kr, planYear, asOf)

	selected := selectTargets(targets, year)
	out := make([]QuarterProgress, 0, len(selected))
	for _, qt := range selected {
		out = append(out, e.quarter(qt, kr, checkIns, year, asOf))
	}
	return out
}

// Summary computes the quarters and rolls them up.
func (e *Engine) Summary(targets []model.QuarterTarget, kr model.KeyResult, checkIns []model.CheckIn, planYear int, asOf time.Time) Summary {
	s := Summarize(e.Quarters(targets, kr, checkIns, planYear, asOf))
	if s.CurrentQuarter == 0 {
		s.CurrentQuarter = CurrentQuarter(e.ResolveAsOf(asOf))
	}
	return s
}

// Summarize counts completed quarters. The year is on track when every past
// quarter is complete or the current quarter is ahead or on track.
func Summarize(quarters []QuarterProgress) Summary {
	s := Summary{TotalQuarters: len(quarters)}
	pastComplete := true
	currentHealthy := false
	for _, q := range quarters {
		if q.IsComplete {
			s.CompletedQuarters++
		}
		if q.IsPast && !q.IsComplete {
			pastComplete = false
		}
		if q.IsCurrent {
			s.CurrentQuarter = q.Quarter
			currentHealthy = q.PaceStatus.Healthy()
		}
	}
	s.IsOnTrackForYear = pastComplete || currentHealthy
	return s
}

func selectTargets(targets []model.QuarterTarget, year int) []model.QuarterTarget {
	seen := make(map[int]bool, quartersPerYear)
	out := make([]model.QuarterTarget, 0, len(targets))
	for _, qt := range targets {
		if qt.Quarter < 1 || qt.Quarter > quartersPerYear {
			continue
		}
		if qt.PlanYear != 0 && qt.PlanYear != year {
			continue
		}
		if seen[qt.Quarter] {
			continue
		}
		seen[qt.Quarter] = true
		out = append(out, qt)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quarter < out[j].Quarter })
	return out
}

// quarterInputs are the mode-specific numbers a quarter is computed from.
type quarterInputs struct {
	current  float64
	base     float64
	target   float64
	expected float64
	forecast *float64
	score    func(v float64) float64
}

func (e *Engine) quarter(qt model.QuarterTarget, kr model.KeyResult, checkIns []model.CheckIn, year int, asOf time.Time) QuarterProgress {
	qStart, qEnd := QuarterPeriod(year, qt.Quarter, e.location)
	q := QuarterProgress{
		Quarter:         qt.Quarter,
		QuarterTargetID: qt.ID,
		PeriodStart:     qStart,
		PeriodEnd:       qEnd,
		IsPast:          !asOf.Before(qEnd),
		IsFuture:        asOf.Before(qStart),
		DaysRemaining:   DaysRemaining(qEnd, asOf),
	}
	q.IsCurrent = !q.IsPast && !q.IsFuture

	var in quarterInputs
	if kr.Aggregation == model.AggregationResetQuarterly {
		in = e.resetInputs(qt, kr, checkIns, qStart, qEnd, q.IsCurrent, asOf)
	} else {
		in = e.cumulativeInputs(qt, kr, checkIns, year, qEnd, asOf)
	}

	q.CurrentValue = in.current
	q.Target = in.target
	q.RawProgress = in.score(in.current)
	q.Progress = clamp01(q.RawProgress)
	q.ExpectedProgress = in.expected
	q.ExpectedValue = ExpectedValue(in.base, in.target, in.expected)
	q.PaceRatio = PaceRatio(q.Progress, in.expected)
	q.PaceStatus = e.thresholds.Classify(q.PaceRatio)
	q.ForecastValue = in.forecast
	q.IsComplete = q.RawProgress >= 1

	projected := in.current
	if !q.IsPast && in.forecast != nil {
		projected = *in.forecast
	}
	q.WillComplete = q.IsComplete || in.score(projected) >= 1
	return q
}

// cumulativeInputs treats the quarter target as the year-to-date delta from
// the KR's start value expected by the end of the quarter. For a decreasing KR
// the target is the reduction from the start value, and either sign is read
// as the same magnitude below start.
func (e *Engine) cumulativeInputs(qt model.QuarterTarget, kr model.KeyResult, checkIns []model.CheckIn, year int, qEnd, asOf time.Time) quarterInputs {
	yearStart, _ := YearPeriod(year, e.location)
	toDelta := func(v float64) float64 { return v - kr.StartValue }
	target := qt.TargetValue
	if decreasing(kr) && kr.Type != model.KRTypeMilestone {
		target = -math.Abs(target)
	}

	pts := series(checkIns, yearStart, qEnd, toDelta)
	return quarterInputs{
		current:  toDelta(kr.CurrentValue),
		target:   target,
		expected: Expected(yearStart, qEnd, asOf),
		forecast: fit(pts, daysBetween(yearStart, qEnd)),
		score:    deltaScorer(kr, target),
	}
}

func deltaScorer(kr model.KeyResult, target float64) func(float64) float64 {
	switch {
	case kr.Type == model.KRTypeMilestone:
		return milestoneRatio
	case decreasing(kr):
		return func(v float64) float64 { return rawRatio(-v, 0, -target) }
	default:
		return func(v float64) float64 { return rawRatio(v, 0, target) }
	}
}

// resetInputs treats each quarter independently from a zero baseline. A
// decreasing KR instead measures each quarter from its start value down to the
// quarter target, which is a ceiling the quarter value has to reach.
func (e *Engine) resetInputs(qt model.QuarterTarget, kr model.KeyResult, checkIns []model.CheckIn, qStart, qEnd time.Time, isCurrent bool, asOf time.Time) quarterInputs {
	counted := quarterCheckIns(qt, checkIns, qStart, qEnd)

	current := 0.0
	if ci, _, ok := latest(counted); ok {
		current = ci.Value
	} else if isCurrent {
		current = kr.CurrentValue
	}

	base := 0.0
	score := func(v float64) float64 { return rawRatio(v, 0, qt.TargetValue) }
	switch {
	case kr.Type == model.KRTypeMilestone:
		score = milestoneRatio
	case decreasing(kr):
		base = kr.StartValue
		score = func(v float64) float64 { return rawRatio(-v, -kr.StartValue, -qt.TargetValue) }
	}

	return quarterInputs{
		current:  current,
		base:     base,
		target:   qt.TargetValue,
		expected: Expected(qStart, qEnd, asOf),
		forecast: fit(series(counted, qStart, qEnd, identity), daysBetween(qStart, qEnd)),
		score:    score,
	}
}

// quarterCheckIns returns the check-ins tagged with the quarter target, or,
// when none are tagged, the untagged check-ins recorded inside the quarter.
func quarterCheckIns(qt model.QuarterTarget, checkIns []model.CheckIn, qStart, qEnd time.Time) []model.CheckIn {
	var tagged, dated []model.CheckIn
	for _, ci := range checkIns {
		if qt.ID != "" && ci.QuarterTargetID == qt.ID {
			tagged = append(tagged, ci)
			continue
		}
		if ci.QuarterTargetID != "" {
			continue
		}
		if ts, ok := ci.Timestamp(); ok && !ts.Before(qStart) && ts.Before(qEnd) {
			dated = append(dated, ci)
		}
	}
	if _, _, ok := latest(tagged); ok {
		return tagged
	}
	return dated
}
