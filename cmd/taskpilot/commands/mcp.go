package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/marcus/taskpilot/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve tasks to MCP clients over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout.

Tools: list_tasks, get_task, describe_task, categorize_task, estimate_task and
audit_task. The AI tools report an error when no API key is configured.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd, appOptions{ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ai mcp.AIService
	if a.orch != nil {
		ai = a.orch
	}
	return mcp.NewServer(a.manager, ai, Version).Run(ctx)
}
