package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/history"
)

var (
	historyLimit  int
	historyTotals bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show stored session reports",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 10, "number of reports to list (0 for all)")
	cmd.Flags().BoolVar(&historyTotals, "totals", false, "show totals across all reports")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	st, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		rep, err := st.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		return printJSON(out, rep)
	}

	if historyTotals {
		t, err := st.Totals(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "sessions: %d\npunches: %d\nguard warnings: %d\ntime: %.0fs\n",
			t.Sessions, t.Punches, t.GuardWarnings, t.Seconds)
		for _, p := range classifier.PunchTypes {
			fmt.Fprintf(out, "  %-8s %d\n", p, t.PunchCounts[p])
		}
		return nil
	}

	reports, err := st.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDED\tSESSION\tDURATION\tPUNCHES\tPPM\tGUARD\tWARNINGS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%.0fs\t%d\t%.1f\t%.1f%%\t%d\n",
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.SessionID,
			r.Stats.SessionDuration,
			r.Stats.TotalPunches,
			r.Stats.PunchesPerMinute,
			r.Stats.GuardPerfection,
			r.Stats.GuardWarnings,
		)
	}
	return tw.Flush()
}
