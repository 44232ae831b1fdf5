// Package stats records AI calls in the usage ledger and computes aggregate
// token and cost statistics from it.
package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/orchestrator"
	"github.com/marcus/taskpilot/internal/providers"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Call statuses stored in ai_calls.status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Duration wraps time.Duration for JSON serialization as seconds.
type Duration struct {
	time.Duration
}

// MarshalJSON serializes Duration as seconds with millisecond precision.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(math.Round(d.Seconds()*1000) / 1000)
}

// UnmarshalJSON deserializes Duration from seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return err
	}
	d.Duration = time.Duration(math.Round(secs * float64(time.Second)))
	return nil
}

// String returns a human-readable duration string.
func (d Duration) String() string {
	dur := d.Duration
	if dur < time.Second {
		return fmt.Sprintf("%dms", dur.Milliseconds())
	}
	if dur < time.Minute {
		return fmt.Sprintf("%.1fs", dur.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(dur.Minutes()), int(dur.Seconds())%60)
}

// CallRecord is one row of the ledger.
type CallRecord struct {
	ID           string    `json:"id"`
	TaskID       int       `json:"task_id"`
	Operation    string    `json:"operation"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	Duration     Duration  `json:"duration"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CostUSD      float64   `json:"cost_usd"`
	CreatedAt    time.Time `json:"created_at"`
}

// OperationStats summarizes calls of one operation.
type OperationStats struct {
	Operation    string   `json:"operation"`
	Calls        int      `json:"calls"`
	Failures     int      `json:"failures"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	TotalTokens  int      `json:"total_tokens"`
	CostUSD      float64  `json:"cost_usd"`
	AvgDuration  Duration `json:"avg_duration"`
}

// Summary holds aggregate ledger statistics, JSON-serializable.
type Summary struct {
	Since       *time.Time       `json:"since,omitempty"`
	Calls       int              `json:"calls"`
	Failures    int              `json:"failures"`
	SuccessRate float64          `json:"success_rate"`
	TotalTokens int              `json:"total_tokens"`
	CostUSD     float64          `json:"cost_usd"`
	FirstCallAt *time.Time       `json:"first_call_at,omitempty"`
	LastCallAt  *time.Time       `json:"last_call_at,omitempty"`
	Operations  []OperationStats `json:"operations"`
}

// TaskUsage summarizes the calls made for one task.
type TaskUsage struct {
	TaskID      int        `json:"task_id"`
	Calls       int        `json:"calls"`
	Failures    int        `json:"failures"`
	TotalTokens int        `json:"total_tokens"`
	CostUSD     float64    `json:"cost_usd"`
	LastCallAt  *time.Time `json:"last_call_at,omitempty"`
}

// Ledger stores AI calls in the ai_calls table. It implements
// orchestrator.UsageRecorder.
type Ledger struct {
	db      *db.DB
	nowFunc func() time.Time
	newID   func() string
}

var _ orchestrator.UsageRecorder = (*Ledger)(nil)

// NewLedger creates a Ledger over database.
func NewLedger(database *db.DB) *Ledger {
	return &Ledger{
		db:      database,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// Record inserts one call.
func (l *Ledger) Record(ctx context.Context, call orchestrator.Call) error {
	if l == nil || l.db == nil {
		return errors.New("ledger has no database")
	}

	status := StatusOK
	var errText sql.NullString
	if call.Error != "" {
		status = StatusError
		errText = sql.NullString{String: call.Error, Valid: true}
	}

	_, err := l.db.SQL().ExecContext(ctx, `
		INSERT INTO ai_calls (id, task_id, operation, model, input_tokens, output_tokens,
			total_tokens, duration_ms, status, error, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.newID(), call.TaskID, string(call.Operation), call.Model,
		call.InputTokens, call.OutputTokens, call.TotalTokens, call.Duration.Milliseconds(),
		status, errText, providers.Cost(call.Model, call.InputTokens, call.OutputTokens),
		l.nowFunc().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording ai call: %w", err)
	}
	return nil
}

// Summary aggregates calls made at or after since. A zero since covers the
// whole ledger.
func (l *Ledger) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	sinceText := ""
	result := &Summary{Operations: []OperationStats{}}
	if !since.IsZero() {
		sinceText = since.UTC().Format(timeLayout)
		s := since
		result.Since = &s
	}

	rows, err := l.db.SQL().QueryContext(ctx, `
		SELECT operation,
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(AVG(duration_ms), 0),
			MIN(created_at),
			MAX(created_at)
		FROM ai_calls
		WHERE created_at >= ?
		GROUP BY operation
		ORDER BY operation`, StatusError, sinceText)
	if err != nil {
		return nil, fmt.Errorf("querying ai_calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			op          OperationStats
			avgMillis   float64
			first, last string
		)
		if err := rows.Scan(&op.Operation, &op.Calls, &op.Failures, &op.InputTokens,
			&op.OutputTokens, &op.TotalTokens, &op.CostUSD, &avgMillis, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning ai_calls summary: %w", err)
		}
		op.AvgDuration = Duration{time.Duration(avgMillis * float64(time.Millisecond))}
		result.Operations = append(result.Operations, op)

		result.Calls += op.Calls
		result.Failures += op.Failures
		result.TotalTokens += op.TotalTokens
		result.CostUSD += op.CostUSD
		result.FirstCallAt = earliest(result.FirstCallAt, parseTime(first))
		result.LastCallAt = latest(result.LastCallAt, parseTime(last))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ai_calls summary: %w", err)
	}

	if result.Calls > 0 {
		result.SuccessRate = float64(result.Calls-result.Failures) / float64(result.Calls) * 100
	}
	return result, nil
}

// TaskUsage aggregates the calls made for taskID.
func (l *Ledger) TaskUsage(ctx context.Context, taskID int) (*TaskUsage, error) {
	usage := &TaskUsage{TaskID: taskID}
	var last sql.NullString
	row := l.db.SQL().QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0),
			MAX(created_at)
		FROM ai_calls WHERE task_id = ?`, StatusError, taskID)
	if err := row.Scan(&usage.Calls, &usage.Failures, &usage.TotalTokens, &usage.CostUSD, &last); err != nil {
		return nil, fmt.Errorf("querying task usage: %w", err)
	}
	if last.Valid {
		usage.LastCallAt = parseTime(last.String)
	}
	return usage, nil
}

// Recent returns the newest calls, at most limit of them.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.SQL().QueryContext(ctx, `
		SELECT id, task_id, operation, model, input_tokens, output_tokens, total_tokens,
			duration_ms, status, COALESCE(error, ''), cost_usd, created_at
		FROM ai_calls
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent ai_calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []CallRecord
	for rows.Next() {
		var (
			r       CallRecord
			millis  int64
			created string
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Operation, &r.Model, &r.InputTokens, &r.OutputTokens,
			&r.TotalTokens, &millis, &r.Status, &r.Error, &r.CostUSD, &created); err != nil {
			return nil, fmt.Errorf("scanning ai_calls: %w", err)
		}
		r.Duration = Duration{time.Duration(millis) * time.Millisecond}
		if t := parseTime(created); t != nil {
			r.CreatedAt = *t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil || (b != nil && b.Before(*a)) {
		return b
	}
	return a
}

func latest(a, b *time.Time) *time.Time {
	if a == nil || (b != nil && b.After(*a)) {
		return b
	}
	return a
}
