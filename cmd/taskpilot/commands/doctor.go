package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/marcus/taskpilot/internal/audit"
	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/scheduler"
	"github.com/marcus/taskpilot/internal/store"
	"github.com/spf13/cobra"
)

type checkStatus string

const (
	statusOK   checkStatus = "OK"
	statusWarn checkStatus = "WARN"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check taskpilot configuration and environment",
	Long: `Run diagnostics to detect configuration and environment issues.

Checks config, the task file, the usage ledger, the API key, the backup
schedule and the log directory.`,
	Annotations: map[string]string{"config": "optional"},
	RunE:        runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	results := make([]checkResult, 0)
	hasFail := false

	add := func(name string, status checkStatus, detail string) {
		if status == statusFail {
			hasFail = true
		}
		results = append(results, checkResult{name: name, status: status, detail: detail})
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		add("config", statusFail, err.Error())
		printDoctorResults(out, results)
		return fmt.Errorf("config load failed")
	}
	add("config", statusOK, "loaded")

	checkStore(cfg, add)
	checkLedger(cfg, add)
	checkAPIKey(cfg, add)
	checkBackups(cfg, add)
	checkLogDir(cfg, add)
	checkAuditDir(cfg, add)

	printDoctorResults(out, results)

	if hasFail {
		return fmt.Errorf("doctor found failures")
	}
	return nil
}

func checkStore(cfg *config.Config, add func(string, checkStatus, string)) {
	fs, err := store.NewFile(cfg.Store.Path)
	if err != nil {
		add("tasks", statusFail, err.Error())
		return
	}
	list, err := fs.Load()
	if err != nil {
		add("tasks", statusFail, err.Error())
		return
	}

	invalid := 0
	for i := range list {
		if list[i].Validate() != nil {
			invalid++
		}
	}
	detail := fmt.Sprintf("%d tasks in %s", len(list), fs.Path())
	if invalid > 0 {
		add("tasks", statusWarn, fmt.Sprintf("%s (%d fail validation)", detail, invalid))
		return
	}
	add("tasks", statusOK, detail)
}

func checkLedger(cfg *config.Config, add func(string, checkStatus, string)) {
	if cfg.DB.Path == "" {
		add("ledger", statusWarn, "disabled (db.path is empty)")
		return
	}
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		add("ledger", statusFail, err.Error())
		return
	}
	defer func() { _ = database.Close() }()

	version, err := db.CurrentVersion(database.SQL())
	if err != nil {
		add("ledger", statusFail, err.Error())
		return
	}
	add("ledger", statusOK, fmt.Sprintf("%s (schema v%d)", database.Path(), version))
}

func checkAPIKey(cfg *config.Config, add func(string, checkStatus, string)) {
	if err := config.RequireAPIKey(cfg); err != nil {
		add("api key", statusFail, err.Error())
		return
	}
	detail := fmt.Sprintf("%s (model %s)", cfg.MaskedAPIKey(), cfg.AI.Model)
	if cfg.AI.BaseURL != "" {
		detail += " via " + cfg.AI.BaseURL
	}
	add("api key", statusOK, detail)
}

func checkBackups(cfg *config.Config, add func(string, checkStatus, string)) {
	sched, err := scheduler.NewFromConfig(&cfg.Backup)
	if err != nil {
		if errors.Is(err, scheduler.ErrNoSchedule) {
			add("backups", statusWarn, "no backup schedule configured")
			return
		}
		add("backups", statusFail, err.Error())
		return
	}

	backups, err := store.Backups(cfg.Backup.Dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		add("backups", statusWarn, err.Error())
		return
	}
	detail := fmt.Sprintf("%q, %d kept in %s", cfg.Backup.Schedule, len(backups), cfg.Backup.Dir)
	if next := sched.NextAfter(time.Now()); !next.IsZero() {
		detail += ", next " + next.Format("2006-01-02 15:04")
	}
	add("backups", statusOK, detail)
}

func checkLogDir(cfg *config.Config, add func(string, checkStatus, string)) {
	dir := cfg.Logging.Path
	if dir == "" {
		add("logs", statusOK, "stderr only")
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		add("logs", statusFail, err.Error())
		return
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		add("logs", statusFail, fmt.Sprintf("%s is not writable: %v", dir, err))
		return
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	files, _ := logFiles(dir)
	add("logs", statusOK, fmt.Sprintf("%s (%d files)", filepath.Clean(dir), len(files)))
}

func checkAuditDir(cfg *config.Config, add func(string, checkStatus, string)) {
	if cfg.Audit.Dir == "" {
		add("audit", statusWarn, "disabled (audit.dir is empty)")
		return
	}
	files, err := audit.Files(cfg.Audit.Dir)
	if err != nil {
		add("audit", statusFail, err.Error())
		return
	}
	add("audit", statusOK, fmt.Sprintf("%s (%d files)", cfg.Audit.Dir, len(files)))
}

func printDoctorResults(w io.Writer, results []checkResult) {
	fmt.Fprintln(w, "taskpilot doctor")
	fmt.Fprintln(w, "================")
	for _, result := range results {
		fmt.Fprintf(w, "[%s] %-20s %s\n", result.status, result.name, result.detail)
	}
	fmt.Fprintln(w)
}
