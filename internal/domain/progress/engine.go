package progress

import (
	"time"

	"github.com/okian/krpace/internal/domain/model"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithThresholds overrides the pace bands. Invalid bands are ignored.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		if t.Validate() == nil {
			e.thresholds = t
		}
	}
}

// WithLocation sets the time zone plan years and quarters are cut in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithClock sets the source of "now" used when no asOf is supplied.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine computes progress results. It holds configuration only and is safe
// for concurrent use.
type Engine struct {
	thresholds Thresholds
	location   *time.Location
	now        func() time.Time
}

// NewEngine creates an engine with default bands, UTC periods and the wall clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		thresholds: DefaultThresholds(),
		location:   time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the pace bands in use.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Location returns the time zone periods are cut in.
func (e *Engine) Location() *time.Location { return e.location }

// Result is the year-level progress of a key result.
type Result struct {
	KeyResultID      string           `json:"annual_kr_id"`
	CurrentValue     float64          `json:"current_value"`
	Start            float64          `json:"start"`
	Target           float64          `json:"target"`
	Progress         float64          `json:"progress"`
	ExpectedProgress float64          `json:"expected_progress"`
	ExpectedValue    float64          `json:"expected_value"`
	PaceStatus       model.PaceStatus `json:"pace_status"`
	PaceRatio        float64          `json:"pace_ratio"`
	ForecastValue    *float64         `json:"forecast_value"`
	WillComplete     bool             `json:"will_complete"`
	DaysRemaining    int              `json:"days_remaining"`
	LastCheckInDate  *time.Time       `json:"last_check_in_date"`
	PeriodStart      time.Time        `json:"period_start"`
	PeriodEnd        time.Time        `json:"period_end"`
	AsOf             time.Time        `json:"as_of"`
}

// Compute derives the year-level progress of kr as of asOf (now when zero).
// The period is the KR's plan year, or asOf's year when the KR has none.
func (e *Engine) Compute(kr model.KeyResult, checkIns []model.CheckIn, asOf time.Time) Result {
	asOf = e.ResolveAsOf(asOf)
	start, end := YearPeriod(e.planYear(kr, 0, asOf), e.location)

	progress := keyResultRatio(kr, kr.CurrentValue)
	expected := Expected(start, end, asOf)
	pace := PaceRatio(progress, expected)

	res := Result{
		KeyResultID:      kr.ID,
		CurrentValue:     kr.CurrentValue,
		Start:            kr.StartValue,
		Target:           kr.TargetValue,
		Progress:         progress,
		ExpectedProgress: expected,
		ExpectedValue:    ExpectedValue(kr.StartValue, kr.TargetValue, expected),
		PaceStatus:       e.thresholds.Classify(pace),
		PaceRatio:        pace,
		DaysRemaining:    DaysRemaining(end, asOf),
		PeriodStart:      start,
		PeriodEnd:        end,
		AsOf:             asOf,
	}

	res.ForecastValue = Forecast(checkIns, start, end)
	res.WillComplete = progress >= 1 ||
		(res.ForecastValue != nil && keyResultRawRatio(kr, *res.ForecastValue) >= 1)

	if _, ts, ok := latest(checkIns); ok {
		res.LastCheckInDate = &ts
	}
	return res
}

// ResolveAsOf returns asOf, or the engine clock when it is zero, in the
// engine location.
func (e *Engine) ResolveAsOf(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = e.now()
	}
	return asOf.In(e.location)
}

// planYear picks the explicit year, then the KR's plan year, then asOf's year.
func (e *Engine) planYear(kr model.KeyResult, explicit int, asOf time.Time) int {
	switch {
	case explicit > 0:
		return explicit
	case kr.PlanYear > 0:
		return kr.PlanYear
	default:
		return asOf.Year()
	}
}
