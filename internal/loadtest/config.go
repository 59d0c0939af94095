// Package loadtest drives a running krpace server end to end: it seeds key
// results with quarter targets, submits check-ins concurrently (with
// deliberate duplicates), waits for the workers to drain them and checks the
// board for consistency.
package loadtest

import (
	"runtime"
	"time"

	"github.com/okian/krpace/pkg/logger"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	KeyResults     int           // Number of key results to seed
	CheckInsPerKR  int           // Unique check-ins per key result
	DuplicateEvery int           // Resubmit every Nth check-in; 0 disables
	Workers        int           // Concurrent submitters
	PlanYear       int           // Plan year of the seeded key results
	Seed           uint64        // Random seed; runs with the same seed are identical
	Timeout        time.Duration // HTTP request timeout
	WaitTimeout    time.Duration // How long to wait for check-ins to be processed
	PollInterval   time.Duration // Poll period while waiting
	Logger         logger.Logger
}

// DefaultConfig returns a configuration for a local server.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9080",
		KeyResults:     defaultKeyResults,
		CheckInsPerKR:  defaultCheckInsPerKR,
		DuplicateEvery: defaultDuplicateEvery,
		Workers:        runtime.NumCPU() * workerMultiplier,
		PlanYear:       time.Now().Year(),
		Seed:           1,
		Timeout:        defaultTimeout,
		WaitTimeout:    defaultWaitTimeout,
		PollInterval:   defaultPollInterval,
	}
}

func (c *Config) normalize() error {
	switch {
	case c.BaseURL == "":
		return invalid("base url is required")
	case c.KeyResults <= 0:
		return invalid("key results must be positive")
	case c.CheckInsPerKR <= 0:
		return invalid("check-ins per key result must be positive")
	case c.DuplicateEvery < 0:
		return invalid("duplicate interval must not be negative")
	case c.PlanYear <= 0:
		return invalid("plan year must be positive")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = defaultWaitTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = logger.Get().Named("loadtest")
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	KeyResultsSeeded  int           `json:"key_results_seeded"`
	CheckInsGenerated int           `json:"check_ins_generated"`
	Submitted         int           `json:"submitted"`
	Accepted          int           `json:"accepted"`
	Duplicate         int           `json:"duplicate"`
	Rejected          int           `json:"rejected"`
	Failed            int           `json:"failed"`
	Processed         int           `json:"processed"`
	BoardEntries      int           `json:"board_entries"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration_ns"`
}

// SubmitRate is submitted check-ins per second over the whole run.
func (s Stats) SubmitRate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Submitted) / s.Duration.Seconds()
}
