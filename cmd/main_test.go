package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	app "github.com/okian/krpace/internal/app"
	"github.com/okian/krpace/internal/adapters/repository"
	"github.com/okian/krpace/internal/config"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainComponents(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When building the engine", func() {
			cfg.Timezone = "Europe/Berlin"
			engine, err := newEngine(cfg)

			convey.Convey("Then it uses the configured zone and bands", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(engine.Location().String(), convey.ShouldEqual, "Europe/Berlin")
				convey.So(engine.Thresholds(), convey.ShouldResemble, cfg.Thresholds())
			})
		})

		convey.Convey("When the time zone is unknown", func() {
			cfg.Timezone = "Mars/Olympus"
			_, err := newEngine(cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When opening each store driver", func() {
			mem, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			_, isMemory := mem.(*repository.MemoryStore)
			convey.So(isMemory, convey.ShouldBeTrue)

			cfg.StoreDriver = config.StoreSQLite
			cfg.SQLitePath = filepath.Join(t.TempDir(), "krpace.db")
			lite, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer lite.Close()
			_, isSQLite := lite.(*repository.SQLiteStore)
			convey.So(isSQLite, convey.ShouldBeTrue)

			cfg.StoreDriver = "postgres"
			_, err = openStore(ctx, cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When building the router", func() {
			svc := app.New()
			_, err := svc.CreateKeyResult(ctx, model.KeyResult{ID: "kr", TargetValue: 10})
			convey.So(err, convey.ShouldBeNil)
			h, err := newRouter(ctx, svc, cfg)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then docs, health and the API are served", func() {
				for _, path := range []string{"/api-docs", "/openapi.yaml", "/healthz", "/metrics", "/key-results/kr"} {
					w := httptest.NewRecorder()
					h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})
		})

		convey.Convey("When the locale is invalid", func() {
			cfg.Locale = "!!"
			_, err := newRouter(ctx, app.New(), cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration on a free port", t, func() {
		t.Setenv("KRPACE_ADDR", "127.0.0.1:0")
		t.Setenv("KRPACE_LOG_LEVEL", "error")

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				convey.So(run(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			t.Setenv("KRPACE_STORE_DRIVER", "postgres")

			convey.Convey("Then run fails before serving", func() {
				convey.So(run(context.Background()), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			startSystemMetricsUpdater(ctx)
			close(done)
		}()
		cancel()

		convey.Convey("Then it stops with its context", func() {
			select {
			case <-done:
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("updater still running", convey.ShouldBeEmpty)
			}
		})
	})
}
