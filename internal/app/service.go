// Package service ties storage, check-in ingestion and the progress engine
// together behind the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/okian/krpace/internal/adapters/mq/queue"
	"github.com/okian/krpace/internal/adapters/mq/worker"
	"github.com/okian/krpace/internal/adapters/repository"
	"github.com/okian/krpace/internal/domain/dedupe"
	"github.com/okian/krpace/internal/domain/progress"
	"github.com/okian/krpace/pkg/logger"
	"github.com/okian/krpace/pkg/metrics"
)

// Service implements the API dependencies for key result tracking.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	engine  *progress.Engine
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cancel  context.CancelFunc

	workerCount      int
	queueSize        int
	dedupeSize       int
	boardConcurrency int

	started bool
	logger  logger.Logger
}

// New constructs a Service. Without WithStore it keeps data in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        10_000,
		dedupeSize:       100_000,
		boardConcurrency: runtime.NumCPU() * 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.engine == nil {
		s.engine = progress.NewEngine()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Engine returns the progress engine in use.
func (s *Service) Engine() *progress.Engine { return s.engine }

// Start creates the ingestion pipeline and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting key result service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store, s.engine,
		worker.WithFailureHandler(s.forget),
	)
	// Workers run on a context Stop owns, so cancelling the caller's context
	// does not drop check-ins that were already accepted.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateKeyResults(n)
	}

	s.started = true
	s.logger.Info(ctx, "key result service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued check-ins and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping key result service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "key result service stopped")
	return errors.Join(errs...)
}

// forget releases the dedupe slot of a check-in the store rejected, so a
// corrected resubmission is accepted. Ids the store already holds stay
// recorded.
func (s *Service) forget(ctx context.Context, e queue.Event, err error) { //nolint:gocritic // hugeParam: matches worker.FailureHandler
	if errors.Is(err, repository.ErrConflict) {
		return
	}
	s.deduper.Unrecord(ctx, e.CheckIn.ID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"boardConcurrency": s.boardConcurrency,
		"locationName":     s.engine.Location().String(),
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["keyResults"] = n
		metrics.UpdateKeyResults(n)
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		stats["checkInsProcessed"] = s.pool.Processed()
	}
	return stats
}
