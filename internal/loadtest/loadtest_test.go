package loadtest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/krpace/internal/adapters/http/api"
	service "github.com/okian/krpace/internal/app"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.KeyResults = 8
	cfg.CheckInsPerKR = 5
	cfg.DuplicateEvery = 4
	cfg.Workers = 4
	cfg.PlanYear = 2025
	cfg.Seed = 42
	cfg.Timeout = 5 * time.Second
	cfg.WaitTimeout = 5 * time.Second
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestGenerate(t *testing.T) {
	Convey("Given a fixed seed", t, func() {
		cfg := testConfig("http://unused")

		Convey("When generating twice", func() {
			seedsA, jobsA := generate(cfg, "run")
			seedsB, _ := generate(cfg, "run")

			Convey("Then the key results and check-ins are identical", func() {
				So(seedsA, ShouldResemble, seedsB)
			})

			Convey("Then every fourth check-in is submitted twice", func() {
				So(len(seedsA), ShouldEqual, 8)
				So(len(jobsA), ShouldEqual, 40+10)
				dups := 0
				for _, j := range jobsA {
					if j.Duplicate {
						dups++
					}
				}
				So(dups, ShouldEqual, 10)
			})

			Convey("Then every key result type is covered and valid", func() {
				types := map[model.KRType]bool{}
				for _, s := range seedsA {
					types[s.KeyResult.Type] = true
					So(s.KeyResult.Validate(), ShouldBeNil)
					So(len(s.CheckIns), ShouldEqual, 5)
					for _, ci := range s.CheckIns {
						So(ci.Validate(), ShouldBeNil)
					}
				}
				So(len(types), ShouldEqual, 4)
			})

			Convey("Then cumulative quarter targets climb to the annual target", func() {
				metric := seedsA[0]
				So(metric.KeyResult.Type, ShouldEqual, model.KRTypeMetric)
				So(len(metric.Targets), ShouldEqual, 4)
				So(metric.Targets[3].TargetValue, ShouldEqual, metric.KeyResult.TargetValue)

				milestone := seedsA[3]
				So(milestone.KeyResult.Type, ShouldEqual, model.KRTypeMilestone)
				So(milestone.Targets, ShouldBeEmpty)
			})
		})

		Convey("When the run id differs", func() {
			a, _ := generate(cfg, "one")
			b, _ := generate(cfg, "two")
			So(a[0].KeyResult.ID, ShouldNotEqual, b[0].KeyResult.ID)
			So(a[0].CheckIns[0].ID, ShouldNotEqual, b[0].CheckIns[0].ID)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running krpace server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = svc.Stop(stopCtx)
		}()

		r := chi.NewRouter()
		api.NewServer(svc).Register(ctx, r)
		srv := httptest.NewServer(r)
		defer srv.Close()

		Convey("When a load run completes", func() {
			stats, err := Run(ctx, testConfig(srv.URL))

			Convey("Then every unique check-in is accepted once and processed", func() {
				So(err, ShouldBeNil)
				So(stats.KeyResultsSeeded, ShouldEqual, 8)
				So(stats.Submitted, ShouldEqual, 50)
				So(stats.Accepted, ShouldEqual, 40)
				So(stats.Duplicate, ShouldEqual, 10)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Processed, ShouldEqual, 40)
				So(stats.BoardEntries, ShouldEqual, 8)
			})

			Convey("Then a second run does not collide with the first", func() {
				again, err := Run(ctx, testConfig(srv.URL))
				So(err, ShouldBeNil)
				So(again.Accepted, ShouldEqual, 40)
				So(again.BoardEntries, ShouldEqual, 8)
			})
		})
	})
}

func TestRunErrors(t *testing.T) {
	Convey("Given an unhealthy server", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := Run(context.Background(), testConfig(srv.URL))
		So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
	})

	Convey("Given an invalid configuration", t, func() {
		for name, mutate := range map[string]func(*Config){
			"no url":             func(c *Config) { c.BaseURL = "" },
			"no key results":     func(c *Config) { c.KeyResults = 0 },
			"no check-ins":       func(c *Config) { c.CheckInsPerKR = -1 },
			"negative duplicate": func(c *Config) { c.DuplicateEvery = -2 },
			"no plan year":       func(c *Config) { c.PlanYear = 0 },
		} {
			Convey("When "+name, func() {
				cfg := testConfig("http://unused")
				mutate(&cfg)
				_, err := Run(context.Background(), cfg)
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		}
	})
}

func TestStats(t *testing.T) {
	Convey("Submit rate is zero without a duration", t, func() {
		So(Stats{Submitted: 10}.SubmitRate(), ShouldEqual, 0)
		So(Stats{Submitted: 10, Duration: 2 * time.Second}.SubmitRate(), ShouldEqual, 5)
	})
}
