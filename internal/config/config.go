// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/krpace/internal/domain/progress"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the key result store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// QueueSize bounds the in-memory check-in queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of check-in workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the number of remembered check-in ids.
	DedupeSize int `koanf:"dedupe_size"`

	// BoardConcurrency bounds parallel progress computations for GET /board.
	BoardConcurrency int `koanf:"board_concurrency"`

	// Locale drives number formatting of labels, e.g. "en-US" or "de".
	Locale string `koanf:"locale"`

	// Timezone is the IANA zone plan years and quarters are cut in.
	Timezone string `koanf:"timezone"`

	// Pace band lower bounds.
	PaceAhead   float64 `koanf:"pace_ahead"`
	PaceOnTrack float64 `koanf:"pace_on_track"`
	PaceAtRisk  float64 `koanf:"pace_at_risk"`

	// MaxListLimit caps ?limit on list endpoints.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New returns a Config populated with defaults.
func New() *Config {
	th := progress.DefaultThresholds()
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		StoreDriver:      StoreMemory,
		SQLitePath:       "krpace.db",
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       100_000,
		BoardConcurrency: runtime.NumCPU() * 2,
		Locale:           "en",
		Timezone:         "UTC",
		PaceAhead:        th.Ahead,
		PaceOnTrack:      th.OnTrack,
		PaceAtRisk:       th.AtRisk,
		MaxListLimit:     500,
	}
}

// Thresholds returns the configured pace bands.
func (c *Config) Thresholds() progress.Thresholds {
	return progress.Thresholds{Ahead: c.PaceAhead, OnTrack: c.PaceOnTrack, AtRisk: c.PaceAtRisk}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StoreSQLite:
		return fmt.Errorf("%w: store_driver must be %q or %q, got %q", ErrInvalidConfig, StoreMemory, StoreSQLite, c.StoreDriver)
	case c.StoreDriver == StoreSQLite && strings.TrimSpace(c.SQLitePath) == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0, c.WorkerCount <= 0, c.DedupeSize <= 0, c.BoardConcurrency <= 0, c.MaxListLimit <= 0:
		return fmt.Errorf("%w: sizes and counts must be positive", ErrInvalidConfig)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := progress.NewFormatter(c.Locale); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
