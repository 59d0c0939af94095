// Package worker persists queued check-ins and re-evaluates the pace of the
// key result each one touches.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/krpace/internal/adapters/mq/queue"
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
	"github.com/okian/krpace/pkg/logger"
	"github.com/okian/krpace/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Store persists check-ins and reads back the state needed to recompute pace.
type Store interface {
	AppendCheckIn(ctx context.Context, ci model.CheckIn) (model.CheckIn, model.KeyResult, error)
	Snapshot(ctx context.Context, keyResultID string) (model.Snapshot, error)
}

// Computer derives year-level progress. *progress.Engine satisfies it.
type Computer interface {
	Compute(kr model.KeyResult, checkIns []model.CheckIn, asOf time.Time) progress.Result
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// FailureHandler is called when a check-in could not be stored.
type FailureHandler func(ctx context.Context, e queue.Event, err error)

// Worker processes queued check-ins.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for its loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing check-ins.
type InMemoryWorker struct {
	queue    Queue
	store    Store
	computer Computer
	name     string

	tracker   *paceTracker
	onFailure FailureHandler
	active    *atomic.Int64
	processed *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, store Store, computer Computer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		store:     store,
		computer:  computer,
		name:      "worker",
		tracker:   newPaceTracker(),
		active:    new(atomic.Int64),
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Error(ctx, "error processing check-in", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns how many check-ins this worker has stored.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, e queue.Event) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(metrics.Since(start))
	}()

	ci, kr, err := w.store.AppendCheckIn(ctx, e.CheckIn)
	if err != nil {
		w.fail("store_error")
		if w.onFailure != nil {
			w.onFailure(ctx, e, err)
		}
		return fmt.Errorf("store check-in %s: %w", e.CheckIn.ID, err)
	}
	metrics.RecordCheckInProcessed()
	w.processed.Add(1)

	snap, err := w.store.Snapshot(ctx, kr.ID)
	if err != nil {
		w.fail("snapshot_error")
		return fmt.Errorf("reload key result %s after check-in %s: %w", kr.ID, ci.ID, err)
	}

	computeStart := time.Now()
	res := w.computer.Compute(snap.KeyResult, snap.CheckIns, time.Time{})
	metrics.RecordComputation(metrics.KindYear, metrics.Since(computeStart))
	metrics.RecordPaceStatus(string(res.PaceStatus))

	if prev, changed := w.tracker.observe(kr.ID, res.PaceStatus); changed {
		metrics.RecordPaceTransition(string(prev), string(res.PaceStatus))
		w.logger.Info(ctx, "pace status changed",
			logger.String("annual_kr_id", kr.ID),
			logger.String("from", string(prev)),
			logger.String("to", string(res.PaceStatus)),
			logger.Float64("progress", res.Progress),
			logger.Float64("expected_progress", res.ExpectedProgress),
		)
	}

	w.logger.Debug(ctx, "check-in stored",
		logger.String("check_in_id", ci.ID),
		logger.String("annual_kr_id", kr.ID),
		logger.Float64("current_value", kr.CurrentValue),
	)
	return nil
}

func (w *InMemoryWorker) fail(kind string) {
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", kind)
	metrics.RecordErrorByType(kind, "high")
}

// paceTracker remembers the last pace status computed per key result so
// workers can report transitions.
type paceTracker struct {
	mu   sync.Mutex
	last map[string]model.PaceStatus
}

func newPaceTracker() *paceTracker {
	return &paceTracker{last: make(map[string]model.PaceStatus)}
}

// observe stores status and returns the previous one when it differs.
// The first status seen for a key result is not a transition.
func (t *paceTracker) observe(id string, status model.PaceStatus) (model.PaceStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.last[id]
	t.last[id] = status
	return prev, ok && prev != status
}

// Pool manages multiple workers sharing one queue and pace tracker.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses one worker per CPU.
// opts are applied to every worker.
func NewPool(workerCount int, q Queue, store Store, computer Computer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	tracker := newPaceTracker()
	active := new(atomic.Int64)
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts,
			WithName("worker-"+strconv.Itoa(i)),
			withShared(tracker, active),
		)
		pool.workers[i] = NewInMemoryWorker(q, store, computer, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of check-ins stored by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Shutdown closes the queue and lets workers drain what is already queued.
// Workers still running when ctx or the pool timeout expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			if err := w.Shutdown(ctx); err != nil {
				return err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
