package commands

import (
	"fmt"

	"github.com/marcus/taskpilot/internal/ui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse tasks in an interactive terminal UI",
	Long: `Browse tasks and run AI operations from the terminal.

Keys: j/k move, enter toggles details, d/c/e/a run describe, categorize,
estimate and audit on the selected task, r reloads, q quits.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isInteractive() {
		return fmt.Errorf("tui needs a terminal; use 'taskpilot task list' instead")
	}

	a, err := appFor(cmd, appOptions{ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var runner ui.AIRunner
	if a.orch != nil {
		runner = a.orch
	}
	return ui.New(a.manager.GetAll, runner).Run()
}
