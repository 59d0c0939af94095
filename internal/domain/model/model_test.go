package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	model "github.com/okian/krpace/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestKeyResultNormalize(t *testing.T) {
	convey.Convey("Given a key result with empty enums", t, func() {
		kr := model.KeyResult{StartValue: 10, TargetValue: 20, CurrentValue: 10}

		convey.Convey("When normalizing", func() {
			kr.Normalize()

			convey.Convey("Then defaults are applied", func() {
				convey.So(kr.Type, convey.ShouldEqual, model.KRTypeMetric)
				convey.So(kr.Direction, convey.ShouldEqual, model.DirectionIncrease)
				convey.So(kr.Aggregation, convey.ShouldEqual, model.AggregationCumulative)
				convey.So(kr.Validate(), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a misconfigured milestone", t, func() {
		kr := model.KeyResult{Type: model.KRTypeMilestone, StartValue: 5, TargetValue: 40, CurrentValue: 0.7}

		convey.Convey("When normalizing", func() {
			kr.Normalize()

			convey.Convey("Then the milestone invariant holds", func() {
				convey.So(kr.StartValue, convey.ShouldEqual, 0)
				convey.So(kr.TargetValue, convey.ShouldEqual, 1)
				convey.So(kr.CurrentValue, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the current value is above one", func() {
			kr.CurrentValue = 3
			kr.Normalize()

			convey.Convey("Then it is capped to done", func() {
				convey.So(kr.CurrentValue, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestKeyResultValidate(t *testing.T) {
	convey.Convey("Given invalid key results", t, func() {
		base := model.KeyResult{Type: model.KRTypeCount, Direction: model.DirectionIncrease, Aggregation: model.AggregationCumulative}

		cases := map[string]func(kr *model.KeyResult){
			"unknown type":        func(kr *model.KeyResult) { kr.Type = "ratio" },
			"unknown direction":   func(kr *model.KeyResult) { kr.Direction = "sideways" },
			"unknown aggregation": func(kr *model.KeyResult) { kr.Aggregation = "sum" },
			"nan target":          func(kr *model.KeyResult) { kr.TargetValue = math.NaN() },
			"negative plan year":  func(kr *model.KeyResult) { kr.PlanYear = -1 },
		}
		for name, mutate := range cases {
			kr := base
			mutate(&kr)
			convey.Convey("Then "+name+" is rejected", func() {
				err := kr.Validate()
				convey.So(errors.Is(err, model.ErrInvalidKeyResult), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then legacy display aggregations are accepted", func() {
			for _, agg := range []model.Aggregation{model.AggregationLatest, model.AggregationAverage, model.AggregationMax, model.AggregationMin} {
				kr := base
				kr.Aggregation = agg
				convey.So(kr.Validate(), convey.ShouldBeNil)
			}
		})
	})
}

func TestQuarterTargetValidate(t *testing.T) {
	convey.Convey("Given quarter targets", t, func() {
		convey.So(model.QuarterTarget{Quarter: 1, TargetValue: 250}.Validate(), convey.ShouldBeNil)
		convey.So(model.QuarterTarget{Quarter: 4, TargetValue: -10}.Validate(), convey.ShouldBeNil)

		err := model.QuarterTarget{Quarter: 5, TargetValue: 1}.Validate()
		convey.So(errors.Is(err, model.ErrInvalidQuarterTarget), convey.ShouldBeTrue)

		err = model.QuarterTarget{Quarter: 0}.Validate()
		convey.So(errors.Is(err, model.ErrInvalidQuarterTarget), convey.ShouldBeTrue)
	})
}

func TestParseTimestamp(t *testing.T) {
	convey.Convey("Given stored timestamp forms", t, func() {
		want := time.Date(2025, 7, 2, 10, 30, 0, 0, time.UTC)

		forms := []string{
			"2025-07-02T10:30:00Z",
			"2025-07-02T10:30:00.000Z",
			"2025-07-02T12:30:00+02:00",
			"2025-07-02 10:30:00+00",
			"2025-07-02 10:30:00.000000+00:00",
			"2025-07-02T10:30:00",
			"2025-07-02 10:30:00",
		}
		for _, s := range forms {
			convey.Convey("Then "+s+" parses", func() {
				got, err := model.ParseTimestamp(s)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Equal(want), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a plain date parses to midnight UTC", func() {
			got, err := model.ParseTimestamp("2025-07-02")
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Equal(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
		})

		convey.Convey("Then garbage is reported as malformed", func() {
			for _, s := range []string{"", "yesterday", "2025-13-40"} {
				_, err := model.ParseTimestamp(s)
				convey.So(errors.Is(err, model.ErrMalformedTimestamp), convey.ShouldBeTrue)
			}
		})
	})
}

func TestCheckInValidate(t *testing.T) {
	convey.Convey("Given a check-in", t, func() {
		ci := model.CheckIn{KeyResultID: "kr-1", Value: 12, RecordedAt: "2025-03-01T00:00:00Z"}

		convey.So(ci.Validate(), convey.ShouldBeNil)
		ts, ok := ci.Timestamp()
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(ts.Month(), convey.ShouldEqual, time.March)

		convey.Convey("When the owning KR is missing", func() {
			ci.KeyResultID = " "
			convey.So(errors.Is(ci.Validate(), model.ErrInvalidCheckIn), convey.ShouldBeTrue)
		})

		convey.Convey("When the timestamp is malformed", func() {
			ci.RecordedAt = "not-a-date"
			convey.So(errors.Is(ci.Validate(), model.ErrInvalidCheckIn), convey.ShouldBeTrue)
			_, ok := ci.Timestamp()
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}
