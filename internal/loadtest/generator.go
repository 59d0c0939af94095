package loadtest

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/krpace/internal/domain/model"
)

// Generation ranges.
const (
	quartersPerYear   = 4
	targetStep        = 100
	maxTargetSteps    = 10
	rateStart         = 20
	rateTarget        = 80
	minPerformance    = 0.4
	performanceRange  = 0.9
	milestoneHitRatio = 0.9
	noiseRange        = 0.05
)

// seed is one key result with everything submitted for it.
type seed struct {
	KeyResult model.KeyResult
	Targets   []model.QuarterTarget
	CheckIns  []model.CheckIn
}

// job is one check-in submission. Duplicates reuse the check-in verbatim.
type job struct {
	CheckIn   model.CheckIn
	Duplicate bool
}

// checkInNamespace scopes deterministic check-in ids.
var checkInNamespace = uuid.MustParse("5b8f2f9e-7a51-4e0b-9a7d-3c0f1f1e6d42")

// generate builds the seeded key results and the submission jobs. Key result
// ids carry runID so repeated runs against one server do not collide;
// check-in ids are name-based UUIDs of the key result id and position.
func generate(cfg Config, runID string) ([]seed, []job) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	seeds := make([]seed, 0, cfg.KeyResults)
	jobs := make([]job, 0, cfg.KeyResults*cfg.CheckInsPerKR)
	n := 0
	for i := 0; i < cfg.KeyResults; i++ {
		s := newSeed(rng, cfg, fmt.Sprintf("load-%s-%03d", runID, i), i)
		seeds = append(seeds, s)
		for _, ci := range s.CheckIns {
			jobs = append(jobs, job{CheckIn: ci})
			n++
			if cfg.DuplicateEvery > 0 && n%cfg.DuplicateEvery == 0 {
				jobs = append(jobs, job{CheckIn: ci, Duplicate: true})
			}
		}
	}
	rng.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
	return seeds, jobs
}

func newSeed(rng *rand.Rand, cfg Config, id string, i int) seed {
	kr := model.KeyResult{
		ID:       id,
		Title:    fmt.Sprintf("Load key result %d", i),
		PlanYear: cfg.PlanYear,
	}
	switch i % quartersPerYear {
	case 0:
		kr.Type = model.KRTypeMetric
		kr.TargetValue = float64(targetStep * (1 + rng.IntN(maxTargetSteps)))
		kr.Unit = "users"
	case 1:
		kr.Type = model.KRTypeCount
		kr.Aggregation = model.AggregationResetQuarterly
		kr.TargetValue = float64(targetStep * (1 + rng.IntN(maxTargetSteps)))
	case 2:
		kr.Type = model.KRTypeRate
		kr.StartValue, kr.TargetValue = rateStart, rateTarget
		if i%3 == 0 {
			kr.Direction = model.DirectionDecrease
			kr.StartValue, kr.TargetValue = rateTarget, rateStart
		}
	default:
		kr.Type = model.KRTypeMilestone
	}
	kr.Normalize()

	return seed{
		KeyResult: kr,
		Targets:   quarterTargets(kr),
		CheckIns:  checkIns(rng, cfg, kr),
	}
}

func quarterTargets(kr model.KeyResult) []model.QuarterTarget {
	if kr.Type == model.KRTypeMilestone {
		return nil
	}
	out := make([]model.QuarterTarget, 0, quartersPerYear)
	span := kr.TargetValue - kr.StartValue
	for q := 1; q <= quartersPerYear; q++ {
		target := kr.StartValue + span*float64(q)/quartersPerYear
		if kr.Aggregation == model.AggregationResetQuarterly {
			target = span / quartersPerYear
		}
		out = append(out, model.QuarterTarget{
			KeyResultID: kr.ID,
			Quarter:     q,
			PlanYear:    kr.PlanYear,
			TargetValue: round(target),
		})
	}
	return out
}

// checkIns spreads values evenly over the plan year. Each key result gets a
// performance factor so the board mixes every pace status.
func checkIns(rng *rand.Rand, cfg Config, kr model.KeyResult) []model.CheckIn {
	n := cfg.CheckInsPerKR
	perf := minPerformance + rng.Float64()*performanceRange
	yearStart := time.Date(kr.PlanYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	year := yearStart.AddDate(1, 0, 0).Sub(yearStart)

	out := make([]model.CheckIn, 0, n)
	for k := 0; k < n; k++ {
		at := yearStart.Add(year / time.Duration(n+1) * time.Duration(k+1)).Truncate(time.Second)
		frac := float64(k+1) / float64(n)

		var value float64
		switch kr.Type {
		case model.KRTypeMilestone:
			if k == n-1 && perf >= milestoneHitRatio {
				value = 1
			}
		default:
			noise := 1 + (rng.Float64()*2-1)*noiseRange
			value = round(kr.StartValue + (kr.TargetValue-kr.StartValue)*frac*perf*noise)
		}

		out = append(out, model.CheckIn{
			ID:          uuid.NewSHA1(checkInNamespace, []byte(fmt.Sprintf("%s/%d", kr.ID, k))).String(),
			KeyResultID: kr.ID,
			Value:       value,
			RecordedAt:  model.FormatTimestamp(at),
			Note:        "load test",
		})
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
