// Package repository persists key results, quarter targets and check-ins.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/metrics"
)

// Store provides read/write access to key results and their history.
//
// Check-ins are append-only. Appending one moves the owning key result's
// current value to the value of its most recent check-in by timestamp.
type Store interface {
	// CreateKeyResult normalizes, validates and stores kr. An id is assigned
	// when kr has none. Returns ErrConflict if the id is taken.
	CreateKeyResult(ctx context.Context, kr model.KeyResult) (model.KeyResult, error)

	// GetKeyResult returns ErrNotFound for unknown ids.
	GetKeyResult(ctx context.Context, id string) (model.KeyResult, error)

	// ListKeyResults returns up to limit key results in creation order.
	// limit <= 0 means no limit.
	ListKeyResults(ctx context.Context, limit int) ([]model.KeyResult, error)

	// DeleteKeyResult removes the key result with its targets and check-ins.
	DeleteKeyResult(ctx context.Context, id string) error

	// UpsertQuarterTarget stores qt, replacing any target for the same key
	// result, plan year and quarter while keeping its id.
	UpsertQuarterTarget(ctx context.Context, qt model.QuarterTarget) (model.QuarterTarget, error)

	// ListQuarterTargets returns targets ordered by plan year then quarter.
	ListQuarterTargets(ctx context.Context, keyResultID string) ([]model.QuarterTarget, error)

	// DeleteQuarterTarget removes one quarter target.
	DeleteQuarterTarget(ctx context.Context, keyResultID string, planYear, quarter int) error

	// AppendCheckIn stores ci. Returns ErrConflict if its id is taken.
	AppendCheckIn(ctx context.Context, ci model.CheckIn) (model.CheckIn, model.KeyResult, error)

	// ListCheckIns returns check-ins ordered by recorded_at.
	ListCheckIns(ctx context.Context, keyResultID string) ([]model.CheckIn, error)

	// Snapshot reads a key result with its targets and check-ins at one
	// logical point in time.
	Snapshot(ctx context.Context, keyResultID string) (model.Snapshot, error)

	// Count returns the number of key results.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

func prepareKeyResult(kr model.KeyResult, newID func() string) (model.KeyResult, error) {
	kr.ID = strings.TrimSpace(kr.ID)
	if kr.ID == "" {
		kr.ID = newID()
	}
	kr.Normalize()
	if err := kr.Validate(); err != nil {
		return model.KeyResult{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return kr, nil
}

func prepareQuarterTarget(qt model.QuarterTarget) (model.QuarterTarget, error) {
	qt.KeyResultID = strings.TrimSpace(qt.KeyResultID)
	if qt.KeyResultID == "" {
		return model.QuarterTarget{}, fmt.Errorf("%w: missing annual_kr_id", ErrInvalid)
	}
	if err := qt.Validate(); err != nil {
		return model.QuarterTarget{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return qt, nil
}

// prepareCheckIn validates ci and rewrites RecordedAt in canonical form.
func prepareCheckIn(ci model.CheckIn, newID func() string) (model.CheckIn, time.Time, error) {
	if err := ci.Validate(); err != nil {
		return model.CheckIn{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	ts, _ := ci.Timestamp()
	ci.RecordedAt = model.FormatTimestamp(ts)
	ci.ID = strings.TrimSpace(ci.ID)
	if ci.ID == "" {
		ci.ID = newID()
	}
	return ci, ts, nil
}

// applyCheckIn moves kr's current value to ci when ci is the latest
// observation. latest is the timestamp of the previous latest check-in.
func applyCheckIn(kr model.KeyResult, ci model.CheckIn, ts time.Time, latest time.Time, hasLatest bool) model.KeyResult {
	if hasLatest && ts.Before(latest) {
		return kr
	}
	kr.CurrentValue = ci.Value
	kr.Normalize()
	return kr
}

func sortQuarterTargets(qts []model.QuarterTarget) {
	sort.SliceStable(qts, func(i, j int) bool {
		if qts[i].PlanYear != qts[j].PlanYear {
			return qts[i].PlanYear < qts[j].PlanYear
		}
		return qts[i].Quarter < qts[j].Quarter
	})
}

func observeQuery(start time.Time)  { metrics.RecordStoreQueryLatency(metrics.Since(start)) }
func observeUpdate(start time.Time) { metrics.RecordStoreUpdateLatency(metrics.Since(start)) }

func notFound(kind, id string) error {
	metrics.RecordErrorByComponent("repository", "not_found")
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}
