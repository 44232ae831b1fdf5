// Package orchestrator runs the AI operations on stored tasks: fetch, ask the
// completion client, write the answer into the task, account tokens, persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/providers"
	"github.com/marcus/taskpilot/internal/tasks"
)

// TaskStore is the slice of the task manager the orchestrator needs.
type TaskStore interface {
	GetByID(id int) (*tasks.Task, error)
	Update(id int, task tasks.Task) (*tasks.Task, error)
}

// Call describes one completion for usage accounting.
type Call struct {
	TaskID       int
	Operation    providers.Operation
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Duration     time.Duration
	Error        string
}

// UsageRecorder stores Calls. Recording failures never fail an operation.
type UsageRecorder interface {
	Record(ctx context.Context, call Call) error
}

// Orchestrator applies AI operations to tasks held by a TaskStore.
type Orchestrator struct {
	store        TaskStore
	client       providers.Client
	recorder     UsageRecorder
	logger       *logging.Logger
	eventHandler EventHandler
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUsageRecorder records every completion in r.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithEventHandler sets an optional callback for lifecycle events.
func WithEventHandler(h EventHandler) Option {
	return func(o *Orchestrator) {
		o.eventHandler = h
	}
}

// New creates an orchestrator over store and client.
func New(store TaskStore, client providers.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		client: client,
		logger: logging.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) emit(e Event) {
	if o.eventHandler != nil {
		e.Time = time.Now()
		o.eventHandler(e)
	}
}

// Describe replaces the task description with a generated one.
func (o *Orchestrator) Describe(ctx context.Context, id int) (*tasks.Task, error) {
	return o.run(ctx, id, providers.OpDescribe, func(ctx context.Context, task *tasks.Task) (int, error) {
		res, err := o.call(ctx, task.ID, providers.OpDescribe, func() providers.Result {
			return o.client.Describe(ctx, task.CloneForAI("description"))
		})
		if err != nil {
			return 0, err
		}
		task.Description = res.Text
		return res.Tokens(), nil
	})
}

// Categorize assigns a category. Answers naming a taxonomy entry are stored
// with its canonical casing; anything else is stored as returned.
func (o *Orchestrator) Categorize(ctx context.Context, id int) (*tasks.Task, error) {
	return o.run(ctx, id, providers.OpCategorize, func(ctx context.Context, task *tasks.Task) (int, error) {
		res, err := o.call(ctx, task.ID, providers.OpCategorize, func() providers.Result {
			return o.client.Categorize(ctx, task.CloneForAI("category"))
		})
		if err != nil {
			return 0, err
		}
		category := res.Text
		if c, ok := tasks.ParseCategory(category); ok {
			category = string(c)
		}
		task.Category = tasks.StringPtr(category)
		return res.Tokens(), nil
	})
}

// Estimate sets effort_hours from the model's answer. A non-numeric or
// non-positive answer is a *tasks.ParseError and leaves the task untouched.
func (o *Orchestrator) Estimate(ctx context.Context, id int) (*tasks.Task, error) {
	return o.run(ctx, id, providers.OpEstimate, func(ctx context.Context, task *tasks.Task) (int, error) {
		res, err := o.call(ctx, task.ID, providers.OpEstimate, func() providers.Result {
			return o.client.Estimate(ctx, task.Clone())
		})
		if err != nil {
			return 0, err
		}
		hours, err := ParseHours(res.Text)
		if err != nil {
			return 0, err
		}
		task.EffortHours = hours
		return res.Tokens(), nil
	})
}

// Audit writes a risk analysis and a mitigation plan conditioned on it. Both
// calls must succeed for anything to be persisted; tokens from both are
// added in one increment.
func (o *Orchestrator) Audit(ctx context.Context, id int) (*tasks.Task, error) {
	return o.run(ctx, id, providers.OpAudit, func(ctx context.Context, task *tasks.Task) (int, error) {
		snapshot := task.CloneForAI("risk_analysis", "risk_mitigation")

		analysis, err := o.call(ctx, task.ID, providers.OpAudit, func() providers.Result {
			return o.client.AnalyzeRisks(ctx, snapshot)
		})
		if err != nil {
			return 0, err
		}

		mitigation, err := o.call(ctx, task.ID, providers.OpMitigation, func() providers.Result {
			return o.client.GenerateMitigation(ctx, snapshot, analysis.Text)
		})
		if err != nil {
			return 0, err
		}

		task.RiskAnalysis = tasks.StringPtr(analysis.Text)
		task.RiskMitigation = tasks.StringPtr(mitigation.Text)
		return analysis.Tokens() + mitigation.Tokens(), nil
	})
}

// applyFunc mutates task from one or more completions and returns the
// tokens to add to its usage.
type applyFunc func(ctx context.Context, task *tasks.Task) (int, error)

func (o *Orchestrator) run(ctx context.Context, id int, op providers.Operation, apply applyFunc) (*tasks.Task, error) {
	current, err := o.store.GetByID(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	o.emit(Event{Type: EventOperationStart, Operation: op, TaskID: id, TaskTitle: current.Title})
	o.logger.DebugCtx("operation start", map[string]any{"operation": string(op), "task_id": id})

	working := current.Clone()
	tokens, err := apply(ctx, &working)
	if err != nil {
		o.finish(op, id, 0, time.Since(start), err)
		return nil, err
	}

	working.TokenUsage += tokens
	updated, err := o.store.Update(id, working)
	if err != nil {
		o.finish(op, id, 0, time.Since(start), err)
		return nil, fmt.Errorf("persisting %s result: %w", op, err)
	}

	o.finish(op, id, tokens, time.Since(start), nil)
	return updated, nil
}

func (o *Orchestrator) finish(op providers.Operation, id, tokens int, elapsed time.Duration, err error) {
	e := Event{Type: EventOperationEnd, Operation: op, TaskID: id, Tokens: tokens, Duration: elapsed}
	fields := map[string]any{
		"operation":   string(op),
		"task_id":     id,
		"tokens":      tokens,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
		fields["error"] = err.Error()
		o.logger.WarnCtx("operation failed", fields)
	} else {
		o.logger.InfoCtx("operation complete", fields)
	}
	o.emit(e)
}

// call runs one completion, records it and converts a failed Result into a
// *tasks.RemoteError carrying the provider message unchanged.
func (o *Orchestrator) call(ctx context.Context, taskID int, op providers.Operation, do func() providers.Result) (providers.Result, error) {
	res := do()

	o.emit(Event{Type: EventCallEnd, Operation: op, TaskID: taskID, Tokens: res.Tokens(), Duration: res.Duration, Error: res.Error})
	o.record(ctx, taskID, op, res)

	if res.Failed() {
		return res, &tasks.RemoteError{Operation: string(op), Message: res.Error}
	}
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, taskID int, op providers.Operation, res providers.Result) {
	if o.recorder == nil {
		return
	}
	c := Call{
		TaskID:      taskID,
		Operation:   op,
		Model:       res.Model,
		TotalTokens: res.Tokens(),
		Duration:    res.Duration,
		Error:       res.Error,
	}
	if res.InputTokens != nil {
		c.InputTokens = *res.InputTokens
	}
	if res.OutputTokens != nil {
		c.OutputTokens = *res.OutputTokens
	}
	// The operation deadline must not drop the ledger row.
	if err := o.recorder.Record(context.WithoutCancel(ctx), c); err != nil {
		o.logger.WarnCtx("recording usage failed", map[string]any{
			"operation": string(op),
			"task_id":   taskID,
			"error":     err.Error(),
		})
	}
}

var errNotPositive = errors.New("estimate must be a positive number")

// ParseHours converts a model's effort answer into hours.
func ParseHours(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	hours, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, &tasks.ParseError{What: "effort estimate", Input: text, Err: err}
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return 0, &tasks.ParseError{What: "effort estimate", Input: text, Err: errNotPositive}
	}
	return hours, nil
}
