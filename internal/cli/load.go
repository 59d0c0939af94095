package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/krpace/internal/loadtest"
	"github.com/okian/krpace/pkg/logger"
)

func newLoadCmd(opts *globalOpts) *cobra.Command {
	cfg := loadtest.DefaultConfig()
	var logFormat string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drive a running server with generated key results and check-ins",
		Long: `Seed key results with quarter targets on a running krpace server, submit
check-ins concurrently (resubmitting some to exercise deduplication), wait for
them to be processed and verify the board.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithOptions(logFormat, cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("%w: --log-format: %w", ErrInvalidFlag, err)
			}
			if opts.planYear > 0 {
				cfg.PlanYear = opts.planYear
			}

			stats, err := loadtest.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "key results: %d\n", stats.KeyResultsSeeded)
			fmt.Fprintf(w, "submitted:   %d (accepted %d, duplicate %d, rejected %d, failed %d)\n",
				stats.Submitted, stats.Accepted, stats.Duplicate, stats.Rejected, stats.Failed)
			fmt.Fprintf(w, "processed:   %d\n", stats.Processed)
			fmt.Fprintf(w, "board:       %d entries verified\n", stats.BoardEntries)
			fmt.Fprintf(w, "duration:    %s (%.1f check-ins/s)\n", stats.Duration.Round(time.Millisecond), stats.SubmitRate())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.IntVar(&cfg.KeyResults, "key-results", cfg.KeyResults, "key results to seed")
	f.IntVar(&cfg.CheckInsPerKR, "check-ins", cfg.CheckInsPerKR, "unique check-ins per key result")
	f.IntVar(&cfg.DuplicateEvery, "duplicate-every", cfg.DuplicateEvery, "resubmit every Nth check-in (0 disables)")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent submitters")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.WaitTimeout, "wait", cfg.WaitTimeout, "how long to wait for processing")
	f.StringVar(&logFormat, "log-format", logger.FormatText, "log format on stderr: text or json")

	return cmd
}
