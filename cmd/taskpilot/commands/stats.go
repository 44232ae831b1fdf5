package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/marcus/taskpilot/internal/stats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show AI usage statistics",
	Long: `Show token and cost statistics from the usage ledger.

Use --since to limit the window (a duration such as 24h or an RFC3339 time),
--task to show usage for one task, and --recent to list the newest calls.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("since", "", "Only count calls after this (duration like 24h, or RFC3339)")
	statsCmd.Flags().Int("task", 0, "Show usage for one task id")
	statsCmd.Flags().Int("recent", 0, "List the N most recent calls")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	sinceFlag, _ := cmd.Flags().GetString("since")
	taskID, _ := cmd.Flags().GetInt("task")
	recent, _ := cmd.Flags().GetInt("recent")

	since, err := parseSince(sinceFlag, time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case taskID > 0:
		usage, err := ledger.TaskUsage(ctx, taskID)
		if err != nil {
			return err
		}
		if format != formatTable {
			return writeStructured(out, format, usage)
		}
		printTaskUsage(out, usage)
		return nil

	case recent > 0:
		records, err := ledger.Recent(ctx, recent)
		if err != nil {
			return err
		}
		if format != formatTable {
			if records == nil {
				records = []stats.CallRecord{}
			}
			return writeStructured(out, format, records)
		}
		return printRecentCalls(out, records)
	}

	summary, err := ledger.Summary(ctx, since)
	if err != nil {
		return err
	}
	if format != formatTable {
		return writeStructured(out, format, summary)
	}
	return printSummary(out, summary)
}

// parseSince accepts "", a duration counted back from now, or an RFC3339
// timestamp.
func parseSince(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: use a duration (24h) or a date (2006-01-02 or RFC3339)", v)
}

func printSummary(w io.Writer, s *stats.Summary) error {
	st := newOutputStyles()

	title := "AI usage"
	if s.Since != nil {
		title += " since " + s.Since.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintln(w, st.Title.Render(title))

	if s.Calls == 0 {
		fmt.Fprintln(w, st.Muted.Render("No AI calls recorded."))
		return nil
	}

	fmt.Fprintf(w, "  Calls:         %d (%d failed, %.1f%% ok)\n", s.Calls, s.Failures, s.SuccessRate)
	fmt.Fprintf(w, "  Tokens:        %d\n", s.TotalTokens)
	fmt.Fprintf(w, "  Cost:          $%.4f\n", s.CostUSD)
	if s.FirstCallAt != nil && s.LastCallAt != nil {
		fmt.Fprintf(w, "  Window:        %s .. %s\n",
			s.FirstCallAt.Local().Format("2006-01-02 15:04"), s.LastCallAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tCALLS\tFAILED\tIN\tOUT\tTOTAL\tCOST\tAVG")
	for _, op := range s.Operations {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t$%.4f\t%s\n",
			op.Operation, op.Calls, op.Failures, op.InputTokens, op.OutputTokens,
			op.TotalTokens, op.CostUSD, op.AvgDuration)
	}
	return tw.Flush()
}

func printTaskUsage(w io.Writer, u *stats.TaskUsage) {
	fmt.Fprintf(w, "Task %d: %d calls (%d failed), %d tokens, $%.4f\n",
		u.TaskID, u.Calls, u.Failures, u.TotalTokens, u.CostUSD)
	if u.LastCallAt != nil {
		fmt.Fprintf(w, "Last call: %s\n", u.LastCallAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func printRecentCalls(w io.Writer, records []stats.CallRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No AI calls recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTASK\tOPERATION\tMODEL\tTOKENS\tDURATION\tSTATUS")
	for _, r := range records {
		status := r.Status
		if r.Error != "" {
			status += ": " + truncate(r.Error, 40)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.Local().Format("01-02 15:04:05"), r.TaskID, r.Operation,
			orDash(r.Model), r.TotalTokens, r.Duration, status)
	}
	return tw.Flush()
}
