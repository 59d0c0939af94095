package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/krpace/internal/domain/model"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// handleCreateKeyResult handles POST /key-results.
func (s *Server) handleCreateKeyResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_key_result"
	f, err := s.formatterFor(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var kr model.KeyResult
	if err := decodeJSON(r, &kr); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	created, err := s.deps.CreateKeyResult(r.Context(), kr)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/key-results/"+created.ID)
	writeJSON(w, http.StatusCreated, newKeyResultView(f, created))
}

// handleListKeyResults handles GET /key-results.
func (s *Server) handleListKeyResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_key_results"
	f, err := s.formatterFor(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := limit(r, s.maxListLimit)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	krs, err := s.deps.ListKeyResults(r.Context(), n)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	views := make([]keyResultView, 0, len(krs))
	for _, kr := range krs {
		views = append(views, newKeyResultView(f, kr))
	}
	writeJSON(w, http.StatusOK, newList(views))
}

// handleGetKeyResult handles GET /key-results/{id}.
func (s *Server) handleGetKeyResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_key_result"
	f, err := s.formatterFor(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	kr, err := s.deps.GetKeyResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newKeyResultView(f, kr))
}

// handleDeleteKeyResult handles DELETE /key-results/{id}.
func (s *Server) handleDeleteKeyResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_key_result"
	if err := s.deps.DeleteKeyResult(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListQuarterTargets handles GET /key-results/{id}/quarter-targets.
func (s *Server) handleListQuarterTargets(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_quarter_targets"
	list, err := s.deps.ListQuarterTargets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newList(list))
}

type quarterTargetRequest struct {
	TargetValue *float64 `json:"target_value"`
	PlanYear    int      `json:"plan_year"`
	Notes       string   `json:"notes"`
}

// handlePutQuarterTarget handles PUT /key-results/{id}/quarter-targets/{quarter}.
// The plan year comes from the plan_year query parameter, then the body,
// then the key result.
func (s *Server) handlePutQuarterTarget(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_quarter_target"
	quarter, err := quarterParam(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	year, err := planYear(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req quarterTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.TargetValue == nil {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	if year == 0 {
		year = req.PlanYear
	}

	qt, err := s.deps.SetQuarterTarget(r.Context(), model.QuarterTarget{
		KeyResultID: chi.URLParam(r, "id"),
		Quarter:     quarter,
		PlanYear:    year,
		TargetValue: *req.TargetValue,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, qt)
}

// handleDeleteQuarterTarget handles DELETE /key-results/{id}/quarter-targets/{quarter}.
func (s *Server) handleDeleteQuarterTarget(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_quarter_target"
	quarter, err := quarterParam(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	year, err := planYear(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.DeleteQuarterTarget(r.Context(), chi.URLParam(r, "id"), year, quarter); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
