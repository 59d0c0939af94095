package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/krpace/internal/domain/progress"
)

type progressQuery struct {
	id        string
	asOf      time.Time
	planYear  int
	formatter *progress.Formatter
}

// parseProgressQuery reads the parameters shared by the progress endpoints.
func (s *Server) parseProgressQuery(r *http.Request) (progressQuery, error) {
	q := progressQuery{id: chi.URLParam(r, "id")}
	var err error
	if q.asOf, err = asOf(r); err != nil {
		return q, err
	}
	if q.planYear, err = planYear(r); err != nil {
		return q, err
	}
	if q.formatter, err = s.formatterFor(r); err != nil {
		return q, err
	}
	return q, nil
}

// handleProgress handles GET /key-results/{id}/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.progress"
	q, err := s.parseProgressQuery(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	kr, err := s.deps.GetKeyResult(r.Context(), q.id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	res, err := s.deps.Progress(r.Context(), q.id, q.asOf)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newProgressView(q.formatter, kr, res))
}

type quartersResponse struct {
	Items   []quarterView    `json:"items"`
	Summary progress.Summary `json:"summary"`
}

// handleQuarters handles GET /key-results/{id}/quarters.
func (s *Server) handleQuarters(w http.ResponseWriter, r *http.Request) {
	const op = "api.quarters"
	q, err := s.parseProgressQuery(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	kr, err := s.deps.GetKeyResult(r.Context(), q.id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	quarters, err := s.deps.Quarters(r.Context(), q.id, q.planYear, q.asOf)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	sum, err := s.deps.QuarterSummary(r.Context(), q.id, q.planYear, q.asOf)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, quartersResponse{
		Items:   newQuarterViews(q.formatter, kr, quarters),
		Summary: sum,
	})
}

// handleQuarterSummary handles GET /key-results/{id}/quarters/summary.
func (s *Server) handleQuarterSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.quarter_summary"
	q, err := s.parseProgressQuery(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	sum, err := s.deps.QuarterSummary(r.Context(), q.id, q.planYear, q.asOf)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleBoard handles GET /board.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	const op = "api.board"
	at, err := asOf(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := limit(r, s.maxListLimit)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	f, err := s.formatterFor(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := s.deps.Board(r.Context(), n, at)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	views := make([]boardEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, boardEntryView{
			KeyResult: newKeyResultView(f, e.KeyResult),
			Progress:  newProgressView(f, e.KeyResult, e.Progress),
		})
	}
	writeJSON(w, http.StatusOK, newList(views))
}

type currentQuarterResponse struct {
	Quarter int       `json:"quarter"`
	Year    int       `json:"year"`
	AsOf    time.Time `json:"as_of"`
}

// handleCurrentQuarter handles GET /quarters/current.
func (s *Server) handleCurrentQuarter(w http.ResponseWriter, r *http.Request) {
	const op = "api.current_quarter"
	at, err := asOf(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	quarter, resolved := s.deps.CurrentQuarter(at)
	writeJSON(w, http.StatusOK, currentQuarterResponse{Quarter: quarter, Year: resolved.Year(), AsOf: resolved})
}
