// Package api exposes key results, check-ins and progress over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/krpace/internal/app"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
	"github.com/okian/krpace/pkg/logger"
)

const defaultMaxListLimit = 500

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	CreateKeyResult(ctx context.Context, kr model.KeyResult) (model.KeyResult, error)
	GetKeyResult(ctx context.Context, id string) (model.KeyResult, error)
	ListKeyResults(ctx context.Context, limit int) ([]model.KeyResult, error)
	DeleteKeyResult(ctx context.Context, id string) error

	SetQuarterTarget(ctx context.Context, qt model.QuarterTarget) (model.QuarterTarget, error)
	ListQuarterTargets(ctx context.Context, keyResultID string) ([]model.QuarterTarget, error)
	DeleteQuarterTarget(ctx context.Context, keyResultID string, planYear, quarter int) error

	// SubmitCheckIn queues a check-in. Returns service.ErrBackpressure when
	// the queue is full.
	SubmitCheckIn(ctx context.Context, ci model.CheckIn) (service.Submission, error)
	ListCheckIns(ctx context.Context, keyResultID string) ([]model.CheckIn, error)

	Progress(ctx context.Context, id string, asOf time.Time) (progress.Result, error)
	Quarters(ctx context.Context, id string, planYear int, asOf time.Time) ([]progress.QuarterProgress, error)
	QuarterSummary(ctx context.Context, id string, planYear int, asOf time.Time) (progress.Summary, error)
	Board(ctx context.Context, limit int, asOf time.Time) ([]service.BoardEntry, error)
	CurrentQuarter(asOf time.Time) (int, time.Time)

	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps         Dependencies
	formatter    *progress.Formatter
	maxListLimit int
	logger       logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithFormatter sets the formatter used when a request names no locale.
func WithFormatter(f *progress.Formatter) Option {
	return func(s *Server) {
		if f != nil {
			s.formatter = f
		}
	}
}

// WithMaxListLimit caps the limit parameter of list endpoints.
func WithMaxListLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxListLimit = n
		}
	}
}

// WithLogger sets a custom logger for request logging.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	f, _ := progress.NewFormatter("")
	s := &Server{
		deps:         deps,
		formatter:    f,
		maxListLimit: defaultMaxListLimit,
		logger:       logger.Get().Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all API routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(s.requestLogger)
		r.Use(MetricsMiddleware)

		r.Get("/healthz", s.handleHealth)
		r.Handle("/metrics", metricsHandler())
		r.Get("/stats", s.handleStats)

		r.Route("/key-results", func(r chi.Router) {
			r.Post("/", s.handleCreateKeyResult)
			r.Get("/", s.handleListKeyResults)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetKeyResult)
				r.Delete("/", s.handleDeleteKeyResult)

				r.Get("/quarter-targets", s.handleListQuarterTargets)
				r.Put("/quarter-targets/{quarter}", s.handlePutQuarterTarget)
				r.Delete("/quarter-targets/{quarter}", s.handleDeleteQuarterTarget)

				r.Post("/check-ins", s.handlePostCheckIn)
				r.Get("/check-ins", s.handleListCheckIns)

				r.Get("/progress", s.handleProgress)
				r.Get("/quarters", s.handleQuarters)
				r.Get("/quarters/summary", s.handleQuarterSummary)
			})
		})

		r.Get("/board", s.handleBoard)
		r.Get("/quarters/current", s.handleCurrentQuarter)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := status(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, code, errorResponse{Code: name, Message: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
