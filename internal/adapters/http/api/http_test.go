package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/krpace/internal/adapters/http/api"
	service "github.com/okian/krpace/internal/app"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
	"github.com/okian/krpace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newRouter(deps api.Dependencies, opts ...api.Option) http.Handler {
	r := chi.NewRouter()
	api.NewServer(deps, opts...).Register(context.Background(), r)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestServer_Operational(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := service.New()
		h := newRouter(svc)

		Convey("Then /healthz reports ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then /metrics serves Prometheus text", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "krpace_")
		})

		Convey("Then /stats reports the service", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, false)
		})

		Convey("Then the current quarter follows as_of", func() {
			w := do(h, http.MethodGet, "/quarters/current?as_of=2025-07-02", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["quarter"], ShouldEqual, 3.0)
			So(body["year"], ShouldEqual, 2025.0)

			So(do(h, http.MethodGet, "/quarters/current?as_of=yesterday", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_KeyResults(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := service.New()
		h := newRouter(svc, api.WithMaxListLimit(2))

		Convey("When creating a key result", func() {
			w := do(h, http.MethodPost, "/key-results",
				`{"id":"rev","title":"Revenue","kr_type":"metric","target_value":1234.5,"unit":"USD","plan_year":2025}`)

			Convey("Then it is created with labels", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Location"), ShouldEqual, "/key-results/rev")
				body := decode(w)
				So(body["id"], ShouldEqual, "rev")
				So(body["target_label"], ShouldEqual, "1,234.5 USD")
				So(body["kr_type_label"], ShouldEqual, "Metric")
				So(body["aggregation_label"], ShouldEqual, "Cumulative")
			})

			Convey("Then German formatting is available by locale", func() {
				w := do(h, http.MethodGet, "/key-results/rev?locale=de", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["target_label"], ShouldEqual, "1.234,5 USD")
			})

			Convey("Then an unknown locale is rejected", func() {
				w := do(h, http.MethodGet, "/key-results/rev?locale=!!", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then creating it again conflicts", func() {
				w := do(h, http.MethodPost, "/key-results", `{"id":"rev"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode(w)["code"], ShouldEqual, "conflict")
			})

			Convey("Then it can be deleted", func() {
				So(do(h, http.MethodDelete, "/key-results/rev", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodGet, "/key-results/rev", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When listing beyond the limit cap", func() {
			for _, id := range []string{"a", "b", "c"} {
				So(do(h, http.MethodPost, "/key-results", `{"id":"`+id+`"}`).Code, ShouldEqual, http.StatusCreated)
			}
			w := do(h, http.MethodGet, "/key-results?limit=50", "")

			Convey("Then the cap applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["count"], ShouldEqual, 2.0)
				So(do(h, http.MethodGet, "/key-results?limit=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When sending invalid bodies", func() {
			So(do(h, http.MethodPost, "/key-results", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/key-results", `{"kr_type":"ratio"}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_QuarterTargets(t *testing.T) {
	Convey("Given a key result", t, func() {
		svc := service.New()
		h := newRouter(svc)
		So(do(h, http.MethodPost, "/key-results", `{"id":"kr","target_value":100,"plan_year":2025}`).Code, ShouldEqual, http.StatusCreated)

		Convey("When putting a quarter target", func() {
			w := do(h, http.MethodPut, "/key-results/kr/quarter-targets/2", `{"target_value":50,"notes":"half"}`)

			Convey("Then it is stored under the key result's plan year", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["plan_year"], ShouldEqual, 2025.0)
				So(body["quarter"], ShouldEqual, 2.0)

				list := decode(do(h, http.MethodGet, "/key-results/kr/quarter-targets", ""))
				So(list["count"], ShouldEqual, 1.0)
			})

			Convey("Then it can be deleted", func() {
				So(do(h, http.MethodDelete, "/key-results/kr/quarter-targets/2", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/key-results/kr/quarter-targets/2", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the quarter or body is wrong", func() {
			So(do(h, http.MethodPut, "/key-results/kr/quarter-targets/5", `{"target_value":1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/key-results/kr/quarter-targets/1", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/key-results/kr/quarter-targets/1?plan_year=abc", `{"target_value":1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/key-results/ghost/quarter-targets/1", `{"target_value":1}`).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_CheckInsAndProgress(t *testing.T) {
	Convey("Given a started service with a key result", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		h := newRouter(svc)

		So(do(h, http.MethodPost, "/key-results", `{"id":"kr","target_value":100,"plan_year":2025,"unit":"%","kr_type":"rate"}`).Code, ShouldEqual, http.StatusCreated)
		for q, target := range []string{"25", "50", "75", "100"} {
			path := "/key-results/kr/quarter-targets/" + strconv.Itoa(q+1)
			So(do(h, http.MethodPut, path, `{"target_value":`+target+`}`).Code, ShouldEqual, http.StatusOK)
		}

		Convey("When posting a check-in twice", func() {
			first := do(h, http.MethodPost, "/key-results/kr/check-ins", `{"id":"c1","value":60,"recorded_at":"2025-06-30"}`)
			second := do(h, http.MethodPost, "/key-results/kr/check-ins", `{"id":"c1","value":60,"recorded_at":"2025-06-30"}`)

			Convey("Then the first is accepted and the second acknowledged as duplicate", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(decode(first)["status"], ShouldEqual, "accepted")
				So(second.Code, ShouldEqual, http.StatusOK)
				So(decode(second)["duplicate"], ShouldEqual, true)
			})

			Convey("Then progress reflects it once stored", func() {
				So(waitFor(func() bool {
					w := do(h, http.MethodGet, "/key-results/kr/check-ins", "")
					return strings.Contains(w.Body.String(), `"count":1`)
				}), ShouldBeTrue)

				w := do(h, http.MethodGet, "/key-results/kr/progress?as_of=2025-07-02", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["pace_status"], ShouldEqual, string(model.PaceAhead))
				So(body["pace_label"], ShouldEqual, "Ahead")
				So(body["progress_label"], ShouldEqual, "60%")
				So(body["current_label"], ShouldEqual, "60.0%")

				q := decode(do(h, http.MethodGet, "/key-results/kr/quarters?as_of=2025-07-02", ""))
				items := q["items"].([]any)
				So(len(items), ShouldEqual, 4)
				So(items[0].(map[string]any)["is_complete"], ShouldEqual, true)
				So(q["summary"].(map[string]any)["current_quarter"], ShouldEqual, 3.0)

				sum := decode(do(h, http.MethodGet, "/key-results/kr/quarters/summary?as_of=2025-07-02", ""))
				So(sum["completed_quarters"], ShouldEqual, 2.0)
				So(sum["total_quarters"], ShouldEqual, 4.0)

				board := decode(do(h, http.MethodGet, "/board?as_of=2025-07-02", ""))
				So(board["count"], ShouldEqual, 1.0)
			})
		})

		Convey("When posting invalid check-ins", func() {
			So(do(h, http.MethodPost, "/key-results/kr/check-ins", `{"recorded_at":"2025-01-01"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/key-results/kr/check-ins", `{"value":1,"recorded_at":"someday"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/key-results/ghost/check-ins", `{"value":1}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When asking progress for an unknown key result", func() {
			So(do(h, http.MethodGet, "/key-results/ghost/progress", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodGet, "/key-results/kr/quarters?plan_year=0", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_QuartersSummaryWithoutCurrentTarget(t *testing.T) {
	Convey("Given a key result with only a Q1 target", t, func() {
		svc := service.New()
		h := newRouter(svc)
		So(do(h, http.MethodPost, "/key-results", `{"id":"kr","target_value":100,"plan_year":2025}`).Code, ShouldEqual, http.StatusCreated)
		So(do(h, http.MethodPut, "/key-results/kr/quarter-targets/1", `{"target_value":25}`).Code, ShouldEqual, http.StatusOK)

		Convey("When listing quarters during Q3", func() {
			q := decode(do(h, http.MethodGet, "/key-results/kr/quarters?as_of=2025-08-15", ""))
			sum := decode(do(h, http.MethodGet, "/key-results/kr/quarters/summary?as_of=2025-08-15", ""))

			Convey("Then the embedded summary still names the calendar quarter", func() {
				So(q["items"].([]any), ShouldHaveLength, 1)
				So(q["summary"].(map[string]any)["current_quarter"], ShouldEqual, 3.0)
				So(q["summary"], ShouldResemble, sum)
			})
		})
	})
}

// failingBoard returns an unexpected error from Board.
type failingBoard struct {
	*service.Service
}

func (failingBoard) Board(context.Context, int, time.Time) ([]service.BoardEntry, error) {
	return nil, errors.New("boom")
}

func TestServer_Errors(t *testing.T) {
	Convey("Given a dependency that fails unexpectedly", t, func() {
		h := newRouter(failingBoard{service.New()})

		Convey("Then the API answers 500 with a JSON body", func() {
			w := do(h, http.MethodGet, "/board", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["code"], ShouldEqual, "internal_error")
		})
	})

	Convey("Given a service that was never started", t, func() {
		h := newRouter(service.New())
		So(do(h, http.MethodPost, "/key-results", `{"id":"kr"}`).Code, ShouldEqual, http.StatusCreated)

		Convey("Then check-ins are refused as unavailable", func() {
			w := do(h, http.MethodPost, "/key-results/kr/check-ins", `{"value":1}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Given the error helpers", t, func() {
		err := api.WrapKind("op", api.ErrBadRequest, errors.New("cause"))
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "op: bad request: cause")
		So(api.NewKind("op", api.ErrNotFound).Error(), ShouldEqual, "op: not found")
		So(api.Wrap("op", nil), ShouldBeNil)
		So(errors.Is(api.Wrap("op", service.ErrBackpressure), api.ErrBackpressure), ShouldBeTrue)
	})

	Convey("Given a custom default formatter", t, func() {
		f, err := progress.NewFormatter("de")
		So(err, ShouldBeNil)
		h := newRouter(service.New(), api.WithFormatter(f))
		So(do(h, http.MethodPost, "/key-results", `{"id":"kr","target_value":1500}`).Code, ShouldEqual, http.StatusCreated)

		Convey("Then it is used unless the request names a locale", func() {
			So(decode(do(h, http.MethodGet, "/key-results/kr", ""))["target_label"], ShouldEqual, "1.500")
			So(decode(do(h, http.MethodGet, "/key-results/kr?locale=en", ""))["target_label"], ShouldEqual, "1,500")
		})
	})
}
