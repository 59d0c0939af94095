package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/metrics"
)

// MemoryStore is a Store held in process memory. A single RWMutex guards
// all tables so Snapshot reads are consistent.
type MemoryStore struct {
	opts options

	mu       sync.RWMutex
	closed   bool
	order    []string
	krs      map[string]model.KeyResult
	targets  map[string][]model.QuarterTarget
	checkIns map[string][]model.CheckIn
	latest   map[string]time.Time
	ciOwner  map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:     applyOptions(opts),
		krs:      make(map[string]model.KeyResult),
		targets:  make(map[string][]model.QuarterTarget),
		checkIns: make(map[string][]model.CheckIn),
		latest:   make(map[string]time.Time),
		ciOwner:  make(map[string]string),
	}
}

// CreateKeyResult implements Store.
func (s *MemoryStore) CreateKeyResult(_ context.Context, kr model.KeyResult) (model.KeyResult, error) {
	defer observeUpdate(time.Now())

	kr, err := prepareKeyResult(kr, s.opts.newID)
	if err != nil {
		return model.KeyResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.KeyResult{}, ErrClosed
	}
	if _, ok := s.krs[kr.ID]; ok {
		return model.KeyResult{}, fmt.Errorf("%w: key result %q already exists", ErrConflict, kr.ID)
	}
	s.krs[kr.ID] = kr
	s.order = append(s.order, kr.ID)
	metrics.UpdateKeyResults(len(s.krs))
	return kr, nil
}

// GetKeyResult implements Store.
func (s *MemoryStore) GetKeyResult(_ context.Context, id string) (model.KeyResult, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	kr, ok := s.krs[id]
	if !ok {
		return model.KeyResult{}, notFound("key result", id)
	}
	return kr, nil
}

// ListKeyResults implements Store.
func (s *MemoryStore) ListKeyResults(_ context.Context, limit int) ([]model.KeyResult, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.KeyResult, 0, n)
	for _, id := range s.order[:n] {
		out = append(out, s.krs[id])
	}
	return out, nil
}

// DeleteKeyResult implements Store.
func (s *MemoryStore) DeleteKeyResult(_ context.Context, id string) error {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.krs[id]; !ok {
		return notFound("key result", id)
	}
	for _, ci := range s.checkIns[id] {
		delete(s.ciOwner, ci.ID)
	}
	delete(s.krs, id)
	delete(s.targets, id)
	delete(s.checkIns, id)
	delete(s.latest, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	metrics.UpdateKeyResults(len(s.krs))
	return nil
}

// UpsertQuarterTarget implements Store.
func (s *MemoryStore) UpsertQuarterTarget(_ context.Context, qt model.QuarterTarget) (model.QuarterTarget, error) {
	defer observeUpdate(time.Now())

	qt, err := prepareQuarterTarget(qt)
	if err != nil {
		return model.QuarterTarget{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.QuarterTarget{}, ErrClosed
	}
	if _, ok := s.krs[qt.KeyResultID]; !ok {
		return model.QuarterTarget{}, notFound("key result", qt.KeyResultID)
	}
	list := s.targets[qt.KeyResultID]
	for i, existing := range list {
		if existing.PlanYear == qt.PlanYear && existing.Quarter == qt.Quarter {
			qt.ID = existing.ID
			list[i] = qt
			return qt, nil
		}
	}
	if qt.ID == "" {
		qt.ID = s.opts.newID()
	}
	list = append(list, qt)
	sortQuarterTargets(list)
	s.targets[qt.KeyResultID] = list
	return qt, nil
}

// ListQuarterTargets implements Store.
func (s *MemoryStore) ListQuarterTargets(_ context.Context, keyResultID string) ([]model.QuarterTarget, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.krs[keyResultID]; !ok {
		return nil, notFound("key result", keyResultID)
	}
	return slices.Clone(s.targetsOf(keyResultID)), nil
}

// DeleteQuarterTarget implements Store.
func (s *MemoryStore) DeleteQuarterTarget(_ context.Context, keyResultID string, planYear, quarter int) error {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	list := s.targets[keyResultID]
	idx := slices.IndexFunc(list, func(qt model.QuarterTarget) bool {
		return qt.PlanYear == planYear && qt.Quarter == quarter
	})
	if idx < 0 {
		return notFound("quarter target", fmt.Sprintf("%s/%d/Q%d", keyResultID, planYear, quarter))
	}
	s.targets[keyResultID] = slices.Delete(list, idx, idx+1)
	return nil
}

// AppendCheckIn implements Store.
func (s *MemoryStore) AppendCheckIn(_ context.Context, ci model.CheckIn) (model.CheckIn, model.KeyResult, error) {
	defer observeUpdate(time.Now())

	ci, ts, err := prepareCheckIn(ci, s.opts.newID)
	if err != nil {
		return model.CheckIn{}, model.KeyResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.CheckIn{}, model.KeyResult{}, ErrClosed
	}
	kr, ok := s.krs[ci.KeyResultID]
	if !ok {
		return model.CheckIn{}, model.KeyResult{}, notFound("key result", ci.KeyResultID)
	}
	if _, taken := s.ciOwner[ci.ID]; taken {
		return model.CheckIn{}, model.KeyResult{}, fmt.Errorf("%w: check-in %q already exists", ErrConflict, ci.ID)
	}

	list := s.checkIns[ci.KeyResultID]
	// Insert after every check-in recorded at or before ts to keep the
	// slice ordered by time and, for ties, by arrival.
	pos, _ := slices.BinarySearchFunc(list, ts, func(e model.CheckIn, t time.Time) int {
		et, _ := e.Timestamp()
		if et.After(t) {
			return 1
		}
		return -1
	})
	s.checkIns[ci.KeyResultID] = slices.Insert(list, pos, ci)
	s.ciOwner[ci.ID] = ci.KeyResultID

	prev, hasPrev := s.latest[ci.KeyResultID]
	kr = applyCheckIn(kr, ci, ts, prev, hasPrev)
	if !hasPrev || !ts.Before(prev) {
		s.latest[ci.KeyResultID] = ts
	}
	s.krs[ci.KeyResultID] = kr
	return ci, kr, nil
}

// ListCheckIns implements Store.
func (s *MemoryStore) ListCheckIns(_ context.Context, keyResultID string) ([]model.CheckIn, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.krs[keyResultID]; !ok {
		return nil, notFound("key result", keyResultID)
	}
	return slices.Clone(s.checkInsOf(keyResultID)), nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(_ context.Context, keyResultID string) (model.Snapshot, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	kr, ok := s.krs[keyResultID]
	if !ok {
		return model.Snapshot{}, notFound("key result", keyResultID)
	}
	return model.Snapshot{
		KeyResult:      kr,
		QuarterTargets: slices.Clone(s.targetsOf(keyResultID)),
		CheckIns:       slices.Clone(s.checkInsOf(keyResultID)),
	}, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.krs), nil
}

// Close implements Store. Reads keep working; writes that add records are rejected.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) targetsOf(id string) []model.QuarterTarget {
	if list := s.targets[id]; list != nil {
		return list
	}
	return []model.QuarterTarget{}
}

func (s *MemoryStore) checkInsOf(id string) []model.CheckIn {
	if list := s.checkIns[id]; list != nil {
		return list
	}
	return []model.CheckIn{}
}
