package service

import (
	"context"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/logger"
)

// CreateKeyResult stores a new key result.
func (s *Service) CreateKeyResult(ctx context.Context, kr model.KeyResult) (model.KeyResult, error) {
	created, err := s.store.CreateKeyResult(ctx, kr)
	if err != nil {
		return model.KeyResult{}, err
	}
	s.logger.Debug(ctx, "key result created", logger.String("annual_kr_id", created.ID))
	return created, nil
}

// GetKeyResult returns one key result.
func (s *Service) GetKeyResult(ctx context.Context, id string) (model.KeyResult, error) {
	return s.store.GetKeyResult(ctx, id)
}

// ListKeyResults returns up to limit key results in creation order.
func (s *Service) ListKeyResults(ctx context.Context, limit int) ([]model.KeyResult, error) {
	return s.store.ListKeyResults(ctx, limit)
}

// DeleteKeyResult removes a key result and everything recorded against it.
func (s *Service) DeleteKeyResult(ctx context.Context, id string) error {
	return s.store.DeleteKeyResult(ctx, id)
}

// SetQuarterTarget creates or replaces the target for one quarter. A target
// without a plan year inherits the key result's.
func (s *Service) SetQuarterTarget(ctx context.Context, qt model.QuarterTarget) (model.QuarterTarget, error) {
	if qt.PlanYear == 0 {
		kr, err := s.store.GetKeyResult(ctx, qt.KeyResultID)
		if err != nil {
			return model.QuarterTarget{}, err
		}
		qt.PlanYear = kr.PlanYear
	}
	return s.store.UpsertQuarterTarget(ctx, qt)
}

// ListQuarterTargets returns a key result's quarter targets.
func (s *Service) ListQuarterTargets(ctx context.Context, keyResultID string) ([]model.QuarterTarget, error) {
	return s.store.ListQuarterTargets(ctx, keyResultID)
}

// DeleteQuarterTarget removes one quarter target. A zero plan year means
// the key result's plan year.
func (s *Service) DeleteQuarterTarget(ctx context.Context, keyResultID string, planYear, quarter int) error {
	if planYear == 0 {
		kr, err := s.store.GetKeyResult(ctx, keyResultID)
		if err != nil {
			return err
		}
		planYear = kr.PlanYear
	}
	return s.store.DeleteQuarterTarget(ctx, keyResultID, planYear, quarter)
}
