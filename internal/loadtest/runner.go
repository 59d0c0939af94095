package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/logger"
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if err := cfg.normalize(); err != nil {
		return Stats{}, err
	}
	log := cfg.Logger
	stats := Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("keyResults", cfg.KeyResults),
		logger.Int("checkInsPerKR", cfg.CheckInsPerKR),
		logger.Int("workers", cfg.Workers),
		logger.Int("planYear", cfg.PlanYear))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	// Step 2: Generate and seed key results
	seeds, jobs := generate(cfg, uuid.NewString()[:8])
	stats.CheckInsGenerated = len(jobs)
	if err := seedKeyResults(ctx, client, seeds, cfg.Workers); err != nil {
		return stats, fmt.Errorf("seeding failed: %w", err)
	}
	stats.KeyResultsSeeded = len(seeds)

	// Step 3: Submit check-ins concurrently
	accepted := submitCheckIns(ctx, client, jobs, cfg.Workers, &stats, log)

	// Step 4: Wait for processing
	processed, err := waitProcessed(ctx, client, seeds, accepted, cfg)
	stats.Processed = processed
	if err != nil {
		return stats, err
	}

	// Step 5: Verify the board
	n, err := verifyBoard(ctx, client, seeds, accepted)
	stats.BoardEntries = n
	if err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "load test completed",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("processed", stats.Processed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submitRate", stats.SubmitRate()))
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	var body struct {
		Status string `json:"status"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/healthz", nil, &body, http.StatusOK); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("%w: status %q", ErrUnhealthy, body.Status)
	}
	return nil
}

func seedKeyResults(ctx context.Context, client *HTTPClient, seeds []seed, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, s := range seeds {
		g.Go(func() error {
			if _, err := client.do(ctx, http.MethodPost, "/key-results", s.KeyResult, nil, http.StatusCreated); err != nil {
				return err
			}
			for _, qt := range s.Targets {
				if _, err := client.do(ctx, http.MethodPut, quarterTargetPath(qt.KeyResultID, qt.Quarter), qt, nil, http.StatusOK); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// acceptedSet records the check-ins the server acknowledged, per key result.
type acceptedSet struct {
	mu   sync.Mutex
	byKR map[string][]model.CheckIn
}

func (a *acceptedSet) add(ci model.CheckIn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byKR[ci.KeyResultID] = append(a.byKR[ci.KeyResultID], ci)
}

func (a *acceptedSet) of(krID string) []model.CheckIn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byKR[krID]
}

func submitCheckIns(ctx context.Context, client *HTTPClient, jobs []job, workers int, stats *Stats, log logger.Logger) *acceptedSet {
	var submitted, ok, dup, rejected, failed atomic.Int64
	accepted := &acceptedSet{byKR: make(map[string][]model.CheckIn)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			submitted.Add(1)
			switch client.submitCheckIn(ctx, j) {
			case outcomeAccepted:
				ok.Add(1)
				accepted.add(j.CheckIn)
			case outcomeDuplicate:
				dup.Add(1)
			case outcomeRejected:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(ok.Load())
	stats.Duplicate = int(dup.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "check-in submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))
	return accepted
}

// waitProcessed polls every key result's check-in list until it holds at
// least the accepted check-ins, and returns how many are stored.
func waitProcessed(ctx context.Context, client *HTTPClient, seeds []seed, accepted *acceptedSet, cfg Config) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	pending := make(map[string]int, len(seeds))
	for _, s := range seeds {
		pending[s.KeyResult.ID] = len(accepted.of(s.KeyResult.ID))
	}
	stored := make(map[string]int, len(seeds))

	for {
		for id, want := range pending {
			var list listResponse[model.CheckIn]
			if _, err := client.do(ctx, http.MethodGet, checkInsPath(id), nil, &list, http.StatusOK); err != nil {
				if ctx.Err() != nil {
					break
				}
				return sum(stored), err
			}
			stored[id] = list.Count
			if list.Count >= want {
				delete(pending, id)
			}
		}
		if len(pending) == 0 {
			return sum(stored), nil
		}
		select {
		case <-ctx.Done():
			return sum(stored), fmt.Errorf("%w: %d key results pending", ErrNotDrained, len(pending))
		case <-ticker.C:
		}
	}
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
