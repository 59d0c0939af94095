package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/krpace/internal/adapters/repository"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
	"github.com/okian/krpace/pkg/metrics"
)

// BoardEntry is one key result with its year-level progress.
type BoardEntry struct {
	KeyResult model.KeyResult `json:"key_result"`
	Progress  progress.Result `json:"progress"`
}

// Progress computes the year-level progress of a key result as of asOf
// (now when zero).
func (s *Service) Progress(ctx context.Context, id string, asOf time.Time) (progress.Result, error) {
	snap, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return progress.Result{}, err
	}
	return s.compute(snap, asOf), nil
}

// Quarters computes per-quarter progress for planYear (the key result's
// plan year when zero).
func (s *Service) Quarters(ctx context.Context, id string, planYear int, asOf time.Time) ([]progress.QuarterProgress, error) {
	snap, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out := s.engine.Quarters(snap.QuarterTargets, snap.KeyResult, snap.CheckIns, planYear, asOf)
	metrics.RecordComputation(metrics.KindQuarters, metrics.Since(start))
	return out, nil
}

// QuarterSummary rolls the quarters of planYear up into one summary.
func (s *Service) QuarterSummary(ctx context.Context, id string, planYear int, asOf time.Time) (progress.Summary, error) {
	snap, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return progress.Summary{}, err
	}
	start := time.Now()
	out := s.engine.Summary(snap.QuarterTargets, snap.KeyResult, snap.CheckIns, planYear, asOf)
	metrics.RecordComputation(metrics.KindSummary, metrics.Since(start))
	return out, nil
}

// CurrentQuarter returns the quarter asOf (now when zero) falls in, in the
// engine's time zone.
func (s *Service) CurrentQuarter(asOf time.Time) (int, time.Time) {
	asOf = s.engine.ResolveAsOf(asOf)
	return progress.CurrentQuarter(asOf), asOf
}

// Board computes progress for up to limit key results concurrently, in
// creation order.
func (s *Service) Board(ctx context.Context, limit int, asOf time.Time) ([]BoardEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordComputation(metrics.KindBoard, metrics.Since(start)) }()

	krs, err := s.store.ListKeyResults(ctx, limit)
	if err != nil {
		return nil, err
	}
	asOf = s.engine.ResolveAsOf(asOf)

	entries := make([]*BoardEntry, len(krs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.boardConcurrency)
	for i, kr := range krs {
		g.Go(func() error {
			snap, err := s.store.Snapshot(gctx, kr.ID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				// Deleted after listing.
				return nil
			case err != nil:
				return err
			}
			entries[i] = &BoardEntry{KeyResult: snap.KeyResult, Progress: s.compute(snap, asOf)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]BoardEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *Service) compute(snap model.Snapshot, asOf time.Time) progress.Result {
	start := time.Now()
	res := s.engine.Compute(snap.KeyResult, snap.CheckIns, asOf)
	metrics.RecordComputation(metrics.KindYear, metrics.Since(start))
	metrics.RecordPaceStatus(string(res.PaceStatus))
	return res
}
