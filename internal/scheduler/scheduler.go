// Package scheduler runs recurring maintenance jobs, such as task file
// backups, on a cron schedule while the server is up.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/robfig/cron/v3"
)

// Scheduler errors.
var (
	ErrNoSchedule     = errors.New("no schedule configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs its jobs each time the cron expression fires.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	jobs     []Job
	cron     *cron.Cron
	entry    cron.EntryID
	cancel   context.CancelFunc
	running  bool
	logger   *logging.Logger
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{logger: logging.Component("scheduler")}
}

// NewFromConfig creates a scheduler for the backup section. It returns
// ErrNoSchedule when backup.schedule is empty.
func NewFromConfig(cfg *config.BackupConfig) (*Scheduler, error) {
	if cfg == nil || cfg.Schedule == "" {
		return nil, ErrNoSchedule
	}
	s := New()
	if err := s.SetCron(cfg.Schedule); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCron sets the schedule. Standard five-field expressions and
// descriptors such as @daily or @every 1h are accepted.
func (s *Scheduler) SetCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	return nil
}

// AddJob appends a job. Jobs run sequentially in the order added.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start begins firing jobs. Cancelling ctx stops further runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.cronExpr == "" {
		return ErrNoSchedule
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	entry, err := c.AddFunc(s.cronExpr, func() { s.runJobs(runCtx) })
	if err != nil {
		cancel()
		return fmt.Errorf("scheduling %q: %w", s.cronExpr, err)
	}
	c.Start()

	s.cron = c
	s.entry = entry
	s.cancel = cancel
	s.running = true

	go func() {
		<-runCtx.Done()
		c.Stop()
	}()

	s.logger.InfoCtx("scheduler started", map[string]any{"cron": s.cronExpr, "jobs": len(s.jobs)})
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	c := s.cron
	s.cancel()
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// NextRun returns the next firing time, or zero when not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	c, entry := s.cron, s.entry
	s.mu.Unlock()
	if c == nil {
		return time.Time{}
	}
	return c.Entry(entry).Next
}

// NextAfter returns the first time the schedule fires after t, whether or
// not the scheduler is running. It returns the zero time without a schedule.
func (s *Scheduler) NextAfter(t time.Time) time.Time {
	s.mu.Lock()
	expr := s.cronExpr
	s.mu.Unlock()
	if expr == "" {
		return time.Time{}
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t)
}

func (s *Scheduler) runJobs(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for i, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil {
			s.logger.WarnCtx("scheduled job failed", map[string]any{"job": i, "error": err})
		}
	}
}

// Backupper copies the task file somewhere safe. *store.File satisfies it.
type Backupper interface {
	Backup(dir string, keep int) (string, error)
}

// BackupJob returns a job that backs up b into dir, keeping the newest keep
// copies.
func BackupJob(b Backupper, dir string, keep int) Job {
	logger := logging.Component("scheduler")
	return func(context.Context) error {
		path, err := b.Backup(dir, keep)
		if err != nil {
			return fmt.Errorf("backing up tasks: %w", err)
		}
		logger.InfoCtx("tasks backed up", map[string]any{"path": path, "keep": keep})
		return nil
	}
}
