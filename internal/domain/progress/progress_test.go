package progress_test

import (
	"errors"
	"math"
	"testing"
	"time"

	model "github.com/okian/krpace/internal/domain/model"
	progress "github.com/okian/krpace/internal/domain/progress"
	. "github.com/smartystreets/goconvey/convey"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkIn(value float64, recordedAt string) model.CheckIn {
	return model.CheckIn{KeyResultID: "kr-1", Value: value, RecordedAt: recordedAt}
}

func TestRatio(t *testing.T) {
	Convey("Given a positive range", t, func() {
		Convey("Then the ratio is always within [0,1]", func() {
			for _, current := range []float64{-1e9, -5, 0, 3, 10, 17.5, 20, 21, 1e9} {
				r := progress.Ratio(current, 0, 20)
				So(r, ShouldBeGreaterThanOrEqualTo, 0)
				So(r, ShouldBeLessThanOrEqualTo, 1)
			}
		})

		Convey("Then it interpolates linearly", func() {
			So(progress.Ratio(15, 10, 20), ShouldAlmostEqual, 0.5)
			So(progress.Ratio(600, 0, 1000), ShouldAlmostEqual, 0.6)
		})

		Convey("Then increasing current never decreases the ratio", func() {
			prev := -1.0
			for current := -50.0; current <= 150; current += 2.5 {
				r := progress.Ratio(current, 0, 100)
				So(r, ShouldBeGreaterThanOrEqualTo, prev)
				prev = r
			}
		})
	})

	Convey("Given a zero or inverted range", t, func() {
		Convey("Then the result is binary on current >= target", func() {
			So(progress.Ratio(5, 5, 5), ShouldEqual, 1)
			So(progress.Ratio(4.999, 5, 5), ShouldEqual, 0)
			So(progress.Ratio(-1e6, 5, 5), ShouldEqual, 0)
			So(progress.Ratio(1e6, 5, 5), ShouldEqual, 1)
			So(progress.Ratio(60, 100, 50), ShouldEqual, 1)
			So(progress.Ratio(40, 100, 50), ShouldEqual, 0)
		})
	})
}

func TestExpectedAndPace(t *testing.T) {
	start := date(2025, time.January, 1)
	end := date(2026, time.January, 1)

	Convey("Given a plan year", t, func() {
		Convey("Then expected progress is 0 before the start and 1 after the end", func() {
			So(progress.Expected(start, end, start.Add(-time.Hour)), ShouldEqual, 0)
			So(progress.Expected(start, end, start), ShouldEqual, 0)
			So(progress.Expected(start, end, end), ShouldEqual, 1)
			So(progress.Expected(start, end, end.AddDate(1, 0, 0)), ShouldEqual, 1)
		})

		Convey("Then it strictly increases inside the period", func() {
			prev := 0.0
			for d := 1; d < 365; d += 7 {
				e := progress.Expected(start, end, start.AddDate(0, 0, d))
				So(e, ShouldBeGreaterThan, prev)
				So(e, ShouldBeLessThan, 1)
				prev = e
			}
		})

		Convey("Then a degenerate period counts as over", func() {
			So(progress.Expected(start, start, start.Add(-time.Hour)), ShouldEqual, 0)
			So(progress.Expected(start, start, start), ShouldEqual, 1)
		})
	})

	Convey("Given pace ratios", t, func() {
		th := progress.DefaultThresholds()

		Convey("Then every non-negative ratio falls in exactly one bucket", func() {
			for r := 0.0; r < 3; r += 0.01 {
				status := th.Classify(r)
				hits := 0
				for _, s := range model.PaceStatuses {
					if s == status {
						hits++
					}
				}
				So(hits, ShouldEqual, 1)
			}
		})

		Convey("Then lower bounds are closed", func() {
			So(th.Classify(0), ShouldEqual, model.PaceOffTrack)
			So(th.Classify(0.6999), ShouldEqual, model.PaceOffTrack)
			So(th.Classify(0.70), ShouldEqual, model.PaceAtRisk)
			So(th.Classify(0.9499), ShouldEqual, model.PaceAtRisk)
			So(th.Classify(0.95), ShouldEqual, model.PaceOnTrack)
			So(th.Classify(1.0999), ShouldEqual, model.PaceOnTrack)
			So(th.Classify(1.10), ShouldEqual, model.PaceAhead)
			So(th.Classify(math.Inf(1)), ShouldEqual, model.PaceAhead)
		})

		Convey("Then no progress is expected before the clock starts", func() {
			So(progress.PaceRatio(0, 0), ShouldEqual, 1)
			So(progress.PaceRatio(0.3, 0.5), ShouldAlmostEqual, 0.6)
		})
	})

	Convey("Given threshold overrides", t, func() {
		Convey("Then overlapping bands are rejected", func() {
			err := progress.Thresholds{Ahead: 1, OnTrack: 1, AtRisk: 0.5}.Validate()
			So(errors.Is(err, progress.ErrInvalidThresholds), ShouldBeTrue)
			So(progress.Thresholds{Ahead: 1.2, OnTrack: 0.9, AtRisk: math.NaN()}.Validate(), ShouldNotBeNil)
			So(progress.DefaultThresholds().Validate(), ShouldBeNil)
		})

		Convey("Then an engine ignores invalid bands", func() {
			e := progress.NewEngine(progress.WithThresholds(progress.Thresholds{Ahead: 0.1, OnTrack: 0.2, AtRisk: 0.3}))
			So(e.Thresholds(), ShouldResemble, progress.DefaultThresholds())
		})

		Convey("Then an engine applies valid bands", func() {
			custom := progress.Thresholds{Ahead: 1.5, OnTrack: 1, AtRisk: 0.5}
			e := progress.NewEngine(progress.WithThresholds(custom))
			So(e.Thresholds(), ShouldResemble, custom)
		})
	})

	Convey("Given days remaining", t, func() {
		So(progress.DaysRemaining(end, end.Add(-12*time.Hour)), ShouldEqual, 1)
		So(progress.DaysRemaining(end, end.AddDate(0, 0, -10)), ShouldEqual, 10)
		So(progress.DaysRemaining(end, end.AddDate(0, 0, 3)), ShouldEqual, 0)
	})

	Convey("Given expected values", t, func() {
		So(progress.ExpectedValue(0, 1000, 0.5), ShouldAlmostEqual, 500)
		So(progress.ExpectedValue(100, 50, 0.5), ShouldAlmostEqual, 75)
	})
}

func TestForecast(t *testing.T) {
	start := date(2025, time.January, 1)
	end := start.AddDate(0, 0, 100)

	Convey("Given too few check-ins", t, func() {
		So(progress.Forecast(nil, start, end), ShouldBeNil)
		So(progress.Forecast([]model.CheckIn{checkIn(5, "2025-01-05")}, start, end), ShouldBeNil)
	})

	Convey("Given check-ins with equal values", t, func() {
		cis := []model.CheckIn{
			checkIn(42, "2025-01-02T00:00:00Z"),
			checkIn(42, "2025-01-20"),
			checkIn(42, "2025-02-11 08:30:00+00"),
		}

		Convey("Then the forecast is flat", func() {
			f := progress.Forecast(cis, start, end)
			So(f, ShouldNotBeNil)
			So(*f, ShouldAlmostEqual, 42)
		})
	})

	Convey("Given a linear trend", t, func() {
		cis := []model.CheckIn{
			checkIn(10, "2025-01-11T00:00:00Z"),
			checkIn(0, "2025-01-01T00:00:00Z"),
		}

		Convey("Then the value is projected at the period end", func() {
			f := progress.Forecast(cis, start, end)
			So(f, ShouldNotBeNil)
			So(*f, ShouldAlmostEqual, 100, 1e-9)
		})
	})

	Convey("Given bad and out-of-period check-ins", t, func() {
		cis := []model.CheckIn{
			checkIn(1000, "2024-12-31T00:00:00Z"),
			checkIn(-1000, "yesterday"),
			checkIn(5, "2025-01-03"),
			checkIn(5, "2025-01-09"),
			checkIn(9999, "2025-06-01"),
		}

		Convey("Then only usable in-period check-ins are fitted", func() {
			f := progress.Forecast(cis, start, end)
			So(f, ShouldNotBeNil)
			So(*f, ShouldAlmostEqual, 5)
		})
	})

	Convey("Given all check-ins on the same instant", t, func() {
		cis := []model.CheckIn{checkIn(2, "2025-01-05"), checkIn(4, "2025-01-05")}

		Convey("Then the mean is used", func() {
			f := progress.Forecast(cis, start, end)
			So(f, ShouldNotBeNil)
			So(*f, ShouldAlmostEqual, 3)
		})
	})
}

func TestEngineCompute(t *testing.T) {
	kr := model.KeyResult{
		ID:          "kr-1",
		Type:        model.KRTypeMetric,
		Direction:   model.DirectionIncrease,
		Aggregation: model.AggregationCumulative,
		StartValue:  0,
		TargetValue: 1000,
		PlanYear:    2025,
	}
	july2 := date(2025, time.July, 2)
	engine := progress.NewEngine()

	Convey("Given a KR at 600 on July 2", t, func() {
		kr.CurrentValue = 600
		res := engine.Compute(kr, nil, july2)

		Convey("Then it is ahead of pace", func() {
			So(res.ExpectedProgress, ShouldAlmostEqual, 0.5, 0.01)
			So(res.Progress, ShouldAlmostEqual, 0.6)
			So(res.PaceRatio, ShouldAlmostEqual, 1.2, 0.01)
			So(res.PaceStatus, ShouldEqual, model.PaceAhead)
			So(res.ForecastValue, ShouldBeNil)
			So(res.LastCheckInDate, ShouldBeNil)
			So(res.DaysRemaining, ShouldEqual, 183)
			So(res.ExpectedValue, ShouldAlmostEqual, 498.6, 0.1)
		})
	})

	Convey("Given the same KR at 300", t, func() {
		kr.CurrentValue = 300
		res := engine.Compute(kr, nil, july2)

		Convey("Then it is off track", func() {
			So(res.Progress, ShouldAlmostEqual, 0.3)
			So(res.PaceRatio, ShouldAlmostEqual, 0.6, 0.01)
			So(res.PaceStatus, ShouldEqual, model.PaceOffTrack)
		})
	})

	Convey("Given an overachieving KR", t, func() {
		kr.CurrentValue = 1500
		res := engine.Compute(kr, nil, july2)

		Convey("Then only the ratio is clamped", func() {
			So(res.Progress, ShouldEqual, 1)
			So(res.CurrentValue, ShouldEqual, 1500)
			So(res.WillComplete, ShouldBeTrue)
		})
	})

	Convey("Given a rising trend of check-ins", t, func() {
		kr.CurrentValue = 20
		kr.TargetValue = 100
		cis := []model.CheckIn{
			checkIn(0, "2025-01-01"),
			checkIn(20, "2025-03-02"),
			checkIn(999, "not a date"),
		}
		res := engine.Compute(kr, cis, date(2025, time.March, 2))
		kr.TargetValue = 1000

		Convey("Then the forecast predicts completion", func() {
			So(res.ForecastValue, ShouldNotBeNil)
			So(*res.ForecastValue, ShouldAlmostEqual, 20.0/60*365, 1e-6)
			So(res.WillComplete, ShouldBeTrue)
			So(res.LastCheckInDate, ShouldNotBeNil)
			So(res.LastCheckInDate.Equal(date(2025, time.March, 2)), ShouldBeTrue)
		})
	})

	Convey("Given a milestone", t, func() {
		ms := model.KeyResult{ID: "m", Type: model.KRTypeMilestone, TargetValue: 1, PlanYear: 2025}

		Convey("Then progress is exactly 0 or 1", func() {
			for _, v := range []float64{0, 0.25, 0.5, 0.99, 1, 2} {
				ms.CurrentValue = v
				p := engine.Compute(ms, nil, july2).Progress
				So(p == 0 || p == 1, ShouldBeTrue)
			}
			ms.CurrentValue = 0.99
			So(engine.Compute(ms, nil, july2).Progress, ShouldEqual, 0)
			ms.CurrentValue = 1
			So(engine.Compute(ms, nil, july2).Progress, ShouldEqual, 1)
		})
	})

	Convey("Given a decreasing KR", t, func() {
		dec := model.KeyResult{
			ID: "d", Type: model.KRTypeMetric, Direction: model.DirectionDecrease,
			StartValue: 100, TargetValue: 50, CurrentValue: 75, PlanYear: 2025,
		}

		Convey("Then progress is measured toward the lower target", func() {
			So(engine.Compute(dec, nil, july2).Progress, ShouldAlmostEqual, 0.5)
			dec.CurrentValue = 40
			So(engine.Compute(dec, nil, july2).Progress, ShouldEqual, 1)
			dec.CurrentValue = 120
			So(engine.Compute(dec, nil, july2).Progress, ShouldEqual, 0)
		})
	})

	Convey("Given no asOf", t, func() {
		clock := progress.NewEngine(progress.WithClock(func() time.Time { return july2 }))
		kr.CurrentValue = 600
		kr.PlanYear = 0

		Convey("Then the engine clock and its year are used", func() {
			res := clock.Compute(kr, nil, time.Time{})
			So(res.AsOf.Equal(july2), ShouldBeTrue)
			So(res.PeriodStart.Equal(date(2025, time.January, 1)), ShouldBeTrue)
			So(res.PaceStatus, ShouldEqual, model.PaceAhead)
		})
		kr.PlanYear = 2025
	})
}

func TestCurrentQuarter(t *testing.T) {
	Convey("Given dates across the year", t, func() {
		So(progress.CurrentQuarter(date(2025, time.January, 1)), ShouldEqual, 1)
		So(progress.CurrentQuarter(date(2025, time.March, 31)), ShouldEqual, 1)
		So(progress.CurrentQuarter(date(2025, time.April, 1)), ShouldEqual, 2)
		So(progress.CurrentQuarter(date(2025, time.September, 30)), ShouldEqual, 3)
		So(progress.CurrentQuarter(date(2025, time.December, 31)), ShouldEqual, 4)
		q := progress.CurrentQuarter(time.Time{})
		So(q, ShouldBeBetweenOrEqual, 1, 4)
	})
}
