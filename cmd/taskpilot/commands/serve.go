package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcus/taskpilot/internal/api"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/scheduler"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the task and AI HTTP API.

The server refuses to start without an API key. When backup.schedule is set,
the task file is also backed up on that schedule while the server runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	serveCmd.Flags().Bool("no-backup", false, "Disable scheduled backups")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	noBackup, _ := cmd.Flags().GetBool("no-backup")

	a, err := openApp(cfg, appOptions{requireAI: true, ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	logger := logging.Component("serve")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !noBackup {
		sched, err := scheduler.NewFromConfig(&cfg.Backup)
		switch {
		case errors.Is(err, scheduler.ErrNoSchedule):
			logger.Debug("scheduled backups disabled")
		case err != nil:
			return fmt.Errorf("backup schedule: %w", err)
		default:
			sched.AddJob(scheduler.BackupJob(a.store, cfg.Backup.Dir, cfg.Backup.Keep))
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("starting backups: %w", err)
			}
			defer func() { _ = sched.Stop() }()
			logger.InfoCtx("scheduled backups enabled", map[string]any{
				"schedule": cfg.Backup.Schedule,
				"dir":      cfg.Backup.Dir,
				"next_run": sched.NextRun(),
			})
		}
	}

	opts := []api.Option{
		api.WithStatus(a.aiStatus),
		api.WithMode(cfg.Server.Mode),
	}
	if a.ledger != nil {
		opts = append(opts, api.WithUsage(a.ledger))
	}
	server := api.NewServer(a.manager, a.orch, opts...)

	fmt.Fprintf(cmd.OutOrStdout(), "taskpilot %s listening on %s (tasks: %s, model: %s)\n",
		Version, addr, a.store.Path(), a.client.Model())
	return server.Run(ctx, addr)
}
