package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/krpace/internal/domain/model"
)

// checkInRequest is the body of POST /key-results/{id}/check-ins.
// recorded_at defaults to the time the request is handled.
type checkInRequest struct {
	ID              string   `json:"id"`
	Value           *float64 `json:"value"`
	RecordedAt      string   `json:"recorded_at"`
	QuarterTargetID string   `json:"quarter_target_id"`
	Note            string   `json:"note"`
	EvidenceURL     string   `json:"evidence_url"`
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// handlePostCheckIn handles POST /key-results/{id}/check-ins.
func (s *Server) handlePostCheckIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_check_in"
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Value == nil {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	if req.RecordedAt == "" {
		req.RecordedAt = model.FormatTimestamp(time.Now())
	}

	sub, err := s.deps.SubmitCheckIn(r.Context(), model.CheckIn{
		ID:              req.ID,
		KeyResultID:     chi.URLParam(r, "id"),
		Value:           *req.Value,
		RecordedAt:      req.RecordedAt,
		QuarterTargetID: req.QuarterTargetID,
		Note:            req.Note,
		EvidenceURL:     req.EvidenceURL,
	})
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: sub.ID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: sub.ID})
}

// handleListCheckIns handles GET /key-results/{id}/check-ins.
func (s *Server) handleListCheckIns(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_check_ins"
	list, err := s.deps.ListCheckIns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newList(list))
}
