package commands

import (
	"fmt"

	"github.com/marcus/taskpilot/internal/audit"
	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/manager"
	"github.com/marcus/taskpilot/internal/orchestrator"
	"github.com/marcus/taskpilot/internal/providers"
	"github.com/marcus/taskpilot/internal/stats"
	"github.com/marcus/taskpilot/internal/store"
)

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	store   *store.File
	manager *manager.Manager
	client  *providers.OpenAI          // nil when no API key is configured
	orch    *orchestrator.Orchestrator // nil when client is nil
	db      *db.DB                     // nil when db.path is empty
	ledger  *stats.Ledger              // nil when db is nil
	audit   *audit.Logger              // nil when audit.dir is empty
}

type appOptions struct {
	requireAI bool // fail when no API key is configured
	ledger    bool // open the usage ledger
}

// openApp builds the task store, manager and, when possible, the AI client,
// orchestrator and usage ledger.
func openApp(cfg *config.Config, opts appOptions) (*app, error) {
	fs, err := store.NewFile(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	a := &app{
		cfg:     cfg,
		store:   fs,
		manager: manager.New(fs),
	}

	if opts.ledger && cfg.DB.Path != "" {
		database, err := db.Open(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("opening usage ledger: %w", err)
		}
		a.db = database
		a.ledger = stats.NewLedger(database)
	}

	if err := config.RequireAPIKey(cfg); err != nil {
		if opts.requireAI {
			a.Close()
			return nil, err
		}
		logging.Component("cli").Debug("AI operations disabled: no API key")
		return a, nil
	}

	client, err := providers.NewOpenAI(cfg.Providers())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating AI client: %w", err)
	}
	a.client = client

	var orchOpts []orchestrator.Option
	if a.ledger != nil {
		orchOpts = append(orchOpts, orchestrator.WithUsageRecorder(a.ledger))
	}
	if cfg.Audit.Dir != "" {
		trail, err := audit.New(cfg.Audit.Dir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.audit = trail
		orchOpts = append(orchOpts, orchestrator.WithEventHandler(trail.Handler()))
	}
	a.orch = orchestrator.New(a.manager, client, orchOpts...)
	return a, nil
}

// aiStatus reports the AI backend configuration, with or without a client.
func (a *app) aiStatus() providers.Status {
	if a.client != nil {
		return a.client.Status()
	}
	return providers.StatusOf(a.cfg.Providers())
}

// Close releases the ledger database and the audit log.
func (a *app) Close() {
	if a.audit != nil {
		_ = a.audit.Close()
		a.audit = nil
	}
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

// openLedger opens only the usage ledger.
func openLedger(cfg *config.Config) (*stats.Ledger, func(), error) {
	if cfg.DB.Path == "" {
		return nil, nil, fmt.Errorf("usage ledger disabled (db.path is empty)")
	}
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening usage ledger: %w", err)
	}
	return stats.NewLedger(database), func() { _ = database.Close() }, nil
}
