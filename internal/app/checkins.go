package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/krpace/internal/adapters/mq/queue"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/logger"
	"github.com/okian/krpace/pkg/metrics"
)

// Submission reports what happened to a submitted check-in.
type Submission struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// SubmitCheckIn validates ci and queues it for storage. A check-in whose id
// was already submitted is acknowledged as a duplicate and not queued again.
func (s *Service) SubmitCheckIn(ctx context.Context, ci model.CheckIn) (Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Submission{}, ErrNotStarted
	}

	if err := ci.Validate(); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, err := s.store.GetKeyResult(ctx, ci.KeyResultID); err != nil {
		return Submission{}, err
	}

	ci.ID = strings.TrimSpace(ci.ID)
	if ci.ID == "" {
		ci.ID = uuid.NewString()
	}

	if s.deduper.SeenAndRecord(ctx, ci.ID) {
		metrics.RecordCheckInDuplicate()
		s.logger.Debug(ctx, "duplicate check-in skipped", logger.String("check_in_id", ci.ID))
		return Submission{ID: ci.ID, Duplicate: true}, nil
	}

	if !s.queue.Enqueue(ctx, queue.Event{CheckIn: ci, EnqueuedAt: time.Now()}) {
		s.deduper.Unrecord(ctx, ci.ID)
		return Submission{}, ErrBackpressure
	}
	return Submission{ID: ci.ID}, nil
}

// ListCheckIns returns the stored check-ins of a key result by time.
func (s *Service) ListCheckIns(ctx context.Context, keyResultID string) ([]model.CheckIn, error) {
	return s.store.ListCheckIns(ctx, keyResultID)
}
