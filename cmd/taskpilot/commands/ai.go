package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcus/taskpilot/internal/providers"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/spf13/cobra"
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Run AI operations on tasks",
	Long: `Run AI operations against a stored task and save the result.

  describe    write a description from the title and metadata
  categorize  pick one category from the taxonomy
  estimate    estimate effort in hours
  audit       write a risk analysis and a mitigation plan

Every operation adds the tokens it used to the task's token_usage.`,
}

var aiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show AI backend configuration",
	RunE:  runAIStatus,
}

type aiOperation struct {
	name  string
	short string
	run   func(a *app) func(context.Context, int) (*tasks.Task, error)
}

var aiOperations = []aiOperation{
	{"describe", "Generate a task description", func(a *app) func(context.Context, int) (*tasks.Task, error) { return a.orch.Describe }},
	{"categorize", "Assign a category", func(a *app) func(context.Context, int) (*tasks.Task, error) { return a.orch.Categorize }},
	{"estimate", "Estimate effort in hours", func(a *app) func(context.Context, int) (*tasks.Task, error) { return a.orch.Estimate }},
	{"audit", "Write a risk analysis and mitigation plan", func(a *app) func(context.Context, int) (*tasks.Task, error) { return a.orch.Audit }},
}

func init() {
	for _, op := range aiOperations {
		aiCmd.AddCommand(newAIOperationCmd(op))
	}
	aiCmd.AddCommand(aiStatusCmd)
	rootCmd.AddCommand(aiCmd)
}

func newAIOperationCmd(op aiOperation) *cobra.Command {
	return &cobra.Command{
		Use:   op.name + " <id>",
		Short: op.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			a, err := appFor(cmd, appOptions{requireAI: true, ledger: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			before, err := a.manager.GetByID(id)
			if err != nil {
				return err
			}

			t, err := op.run(a)(ctx, id)
			if err != nil {
				return fmt.Errorf("%s task %d: %w", op.name, id, err)
			}

			if format == formatTable {
				st := newOutputStyles()
				fmt.Fprintln(cmd.OutOrStdout(), st.Muted.Render(
					fmt.Sprintf("%s used %d tokens", op.name, t.TokenUsage-before.TokenUsage)))
			}
			return printTask(cmd.OutOrStdout(), format, t)
		},
	}
}

func runAIStatus(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	status := providers.StatusOf(cfg.Providers())
	if format != formatTable {
		return writeStructured(cmd.OutOrStdout(), format, status)
	}

	st := newOutputStyles()
	out := cmd.OutOrStdout()
	configured := st.Error.Render("no")
	if status.Configured {
		configured = st.OK.Render("yes")
	}
	fmt.Fprintln(out, st.Title.Render("AI backend"))
	fmt.Fprintf(out, "  Configured:  %s\n", configured)
	fmt.Fprintf(out, "  API key:     %s\n", orDash(cfg.MaskedAPIKey()))
	fmt.Fprintf(out, "  Model:       %s\n", status.DefaultModel)
	if cfg.AI.BaseURL != "" {
		fmt.Fprintf(out, "  Base URL:    %s\n", cfg.AI.BaseURL)
	}
	fmt.Fprintf(out, "  Timeout:     %s\n", cfg.AI.Timeout)
	fmt.Fprintf(out, "  Models:      %v\n", status.AvailableModels)
	fmt.Fprintf(out, "  Operations:  %v\n", status.OperationsSupported)
	return nil
}
