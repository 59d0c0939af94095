package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
)

func newProgressCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show year-level progress and pace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			kr := e.snap.KeyResult
			res := e.engine.Compute(kr, e.snap.CheckIns, e.asOf)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			w := cmd.OutOrStdout()
			title := kr.Title
			if title == "" {
				title = kr.ID
			}
			fmt.Fprintf(w, "%s (%s, %s)\n", title, progress.FormatKRType(kr.Type), progress.FormatAggregation(kr.Aggregation))
			if kr.Type == model.KRTypeMilestone {
				fmt.Fprintf(w, "status:     %s\n", progress.FormatMilestone(res.CurrentValue))
			} else {
				fmt.Fprintf(w, "current:    %s of %s\n",
					e.formatter.Value(res.CurrentValue, kr.Unit, kr.Type),
					e.formatter.Value(res.Target, kr.Unit, kr.Type))
			}
			fmt.Fprintf(w, "progress:   %s (expected %s)\n", e.formatter.Progress(res.Progress), e.formatter.Progress(res.ExpectedProgress))
			fmt.Fprintf(w, "pace:       %s\n", e.formatter.PaceStatus(res.PaceStatus))
			if res.ForecastValue != nil {
				fmt.Fprintf(w, "forecast:   %s\n", e.formatter.Value(*res.ForecastValue, kr.Unit, kr.Type))
			}
			fmt.Fprintf(w, "complete:   %s\n", yesNo(res.WillComplete))
			fmt.Fprintf(w, "days left:  %d\n", res.DaysRemaining)
			return nil
		},
	}
}

func newQuartersCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "quarters",
		Short: "Show progress of every quarter target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			kr := e.snap.KeyResult
			quarters := e.engine.Quarters(e.snap.QuarterTargets, kr, e.snap.CheckIns, opts.planYear, e.asOf)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), quarters)
			}

			w := cmd.OutOrStdout()
			if len(quarters) == 0 {
				fmt.Fprintln(w, "no quarter targets")
				return nil
			}
			for _, q := range quarters {
				fmt.Fprintf(w, "Q%d  %-6s  %s / %s  %s  %s\n",
					q.Quarter,
					phase(q),
					e.formatter.Value(q.CurrentValue, kr.Unit, kr.Type),
					e.formatter.Value(q.Target, kr.Unit, kr.Type),
					e.formatter.Progress(q.Progress),
					e.formatter.PaceStatus(q.PaceStatus))
			}
			return nil
		},
	}
}

func newSummaryCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Roll the quarter targets up to the year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			s := e.engine.Summary(e.snap.QuarterTargets, e.snap.KeyResult, e.snap.CheckIns, opts.planYear, e.asOf)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "completed quarters: %d of %d\n", s.CompletedQuarters, s.TotalQuarters)
			fmt.Fprintf(w, "current quarter:    Q%d\n", s.CurrentQuarter)
			fmt.Fprintf(w, "on track for year:  %s\n", yesNo(s.IsOnTrackForYear))
			return nil
		},
	}
}

// newQuarterCmd needs no snapshot file; it only reports the calendar quarter
// of the evaluation instant.
func newQuarterCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "quarter",
		Short: "Show the calendar quarter of the evaluation instant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := time.LoadLocation(opts.timezone)
			if err != nil {
				return fmt.Errorf("%w: --timezone %q: %w", ErrInvalidFlag, opts.timezone, err)
			}
			var asOf time.Time
			if opts.asOf != "" {
				if asOf, err = model.ParseTimestamp(opts.asOf); err != nil {
					return fmt.Errorf("%w: --as-of: %w", ErrInvalidFlag, err)
				}
			}
			asOf = progress.NewEngine(progress.WithLocation(loc)).ResolveAsOf(asOf)
			q := progress.CurrentQuarter(asOf)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"quarter": q, "year": asOf.Year(), "as_of": asOf})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Q"+strconv.Itoa(q)+" "+strconv.Itoa(asOf.Year()))
			return nil
		},
	}
}

func phase(q progress.QuarterProgress) string {
	switch {
	case q.IsCurrent:
		return "now"
	case q.IsPast:
		return "past"
	default:
		return "future"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
