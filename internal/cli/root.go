// Package cli provides the krctl command tree. krctl computes progress for a
// key result snapshot stored in a YAML or JSON file without a server, and
// drives load against a running one.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/krpace/internal/domain/progress"
)

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	file     string
	asOf     string
	planYear int
	locale   string
	timezone string
	json     bool
	pace     progress.Thresholds
}

// NewRootCmd creates the root krctl command.
func NewRootCmd() *cobra.Command {
	opts := &globalOpts{pace: progress.DefaultThresholds()}

	rootCmd := &cobra.Command{
		Use:   "krctl",
		Short: "Compute key result progress and pace from a snapshot file",
		Long: `krctl - key result progress and pace calculator

The snapshot file holds one key result with its quarter targets and
check-ins, as YAML or JSON:

  key_result: {id: kr-1, start_value: 0, target_value: 100, current_value: 60, plan_year: 2025}
  quarter_targets: [{quarter: 1, plan_year: 2025, target_value: 25}]
  check_ins: [{value: 60, recorded_at: "2025-06-30"}]`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.file, "file", "f", "", "snapshot file (YAML or JSON)")
	pf.StringVar(&opts.asOf, "as-of", "", "evaluation instant, e.g. 2025-07-02 (default now)")
	pf.IntVar(&opts.planYear, "plan-year", 0, "plan year for quarter views (default the key result's)")
	pf.StringVar(&opts.locale, "locale", "en", "BCP 47 locale for number formatting")
	pf.StringVar(&opts.timezone, "timezone", "UTC", "IANA zone plan years and quarters are cut in")
	pf.BoolVar(&opts.json, "json", false, "output as JSON")
	pf.Float64Var(&opts.pace.Ahead, "pace-ahead", opts.pace.Ahead, "pace ratio at or above which a key result is ahead")
	pf.Float64Var(&opts.pace.OnTrack, "pace-on-track", opts.pace.OnTrack, "pace ratio at or above which a key result is on track")
	pf.Float64Var(&opts.pace.AtRisk, "pace-at-risk", opts.pace.AtRisk, "pace ratio at or above which a key result is at risk")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newProgressCmd(opts),
		newQuartersCmd(opts),
		newSummaryCmd(opts),
		newQuarterCmd(opts),
		newLoadCmd(opts),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers. ctx is
// cancelled on interrupt and stops a running load.
func Execute(ctx context.Context, stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}
