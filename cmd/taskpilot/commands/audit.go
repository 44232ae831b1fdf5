package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/marcus/taskpilot/internal/audit"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the AI operation audit trail",
	Long: `Show recent entries of the audit trail. Every AI operation writes a start
event, one event per completion and a final complete or error event.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().IntP("tail", "n", 30, "Number of events to show (0 for all)")
	auditCmd.Flags().Int("task", 0, "Only show events for this task id")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	tail, _ := cmd.Flags().GetInt("tail")
	taskID, _ := cmd.Flags().GetInt("task")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Audit.Dir == "" {
		return fmt.Errorf("audit trail disabled (audit.dir is empty)")
	}

	events, err := audit.Recent(cfg.Audit.Dir, audit.Query{TaskID: taskID, Limit: tail})
	if err != nil {
		return err
	}
	if format != formatTable {
		if events == nil {
			events = []audit.Event{}
		}
		return writeStructured(cmd.OutOrStdout(), format, events)
	}
	return printAuditEvents(cmd.OutOrStdout(), events)
}

func printAuditEvents(w io.Writer, events []audit.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No audit events found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTASK\tOPERATION\tEVENT\tTOKENS\tDURATION\tERROR")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%dms\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.TaskID, orDash(e.Operation),
			e.EventType, e.Tokens, e.DurationMS, orDash(truncate(e.Error, 50)))
	}
	return tw.Flush()
}
