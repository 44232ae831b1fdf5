// Package providers talks to the chat-completion backend that powers the AI
// task operations. Each operation has its own system prompt and sampling
// parameters; every call is normalized into a Result.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/marcus/taskpilot/internal/tasks"
)

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("AI API key not configured")

// Operation names a kind of AI request.
type Operation string

const (
	OpDescribe   Operation = "describe"
	OpCategorize Operation = "categorize"
	OpEstimate   Operation = "estimate"
	OpAudit      Operation = "audit"
	OpMitigation Operation = "mitigation_plan"
)

// Operations returns every operation in the order they are documented.
func Operations() []Operation {
	return []Operation{OpDescribe, OpCategorize, OpEstimate, OpAudit, OpMitigation}
}

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	for _, known := range Operations() {
		if op == known {
			return true
		}
	}
	return false
}

// Client is the set of completions the orchestrator needs. Implementations
// report failures inside Result and never return Go errors.
type Client interface {
	Describe(ctx context.Context, task tasks.Task) Result
	Categorize(ctx context.Context, task tasks.Task) Result
	Estimate(ctx context.Context, task tasks.Task) Result
	AnalyzeRisks(ctx context.Context, task tasks.Task) Result
	GenerateMitigation(ctx context.Context, task tasks.Task, analysis string) Result
}

// Result is the normalized outcome of one completion. On success Text holds
// the trimmed completion; on failure only Error is set. Token counts are nil
// when the backend reported no usage.
type Result struct {
	Text           string        `json:"result,omitempty"`
	InputTokens    *int          `json:"input_tokens,omitempty"`
	OutputTokens   *int          `json:"output_tokens,omitempty"`
	TotalTokens    *int          `json:"total_tokens,omitempty"`
	ProcessingTime float64       `json:"processing_time,omitempty"` // seconds
	Model          string        `json:"model,omitempty"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"-"`
}

// Failed reports whether the call produced an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Tokens returns the total tokens reported, or 0 when none were.
func (r Result) Tokens() int {
	if r.TotalTokens == nil {
		return 0
	}
	return *r.TotalTokens
}

// Failure builds a failed Result.
func Failure(msg string) Result {
	return Result{Error: msg}
}

// Success builds a successful Result reporting total tokens. It is mostly
// useful for fakes.
func Success(text string, totalTokens int) Result {
	return Result{Text: text, TotalTokens: &totalTokens}
}
