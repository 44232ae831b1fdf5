package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/tasks"
	openai "github.com/sashabaranov/go-openai"
)

const notSpecified = "Not specified"

// OpenAI is a Client backed by an OpenAI-compatible chat completion API.
type OpenAI struct {
	client *openai.Client
	cfg    Config
	logger *logging.Logger
}

// NewOpenAI creates a client. It fails with ErrMissingAPIKey when cfg has no
// key.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.timeout()}

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logging.Component("providers"),
	}, nil
}

// Model returns the model used for completions.
func (o *OpenAI) Model() string {
	return o.cfg.model()
}

// Status reports the client's configuration.
func (o *OpenAI) Status() Status {
	return StatusOf(o.cfg)
}

// Describe asks for a task description.
func (o *OpenAI) Describe(ctx context.Context, task tasks.Task) Result {
	user := fmt.Sprintf("Title: %s\nPriority: %s\nAssigned to: %s\nCategory: %s",
		task.Title, task.Priority, task.AssignedTo, categoryOf(task))
	return o.complete(ctx, OpDescribe, user)
}

// Categorize asks for one category from the taxonomy.
func (o *OpenAI) Categorize(ctx context.Context, task tasks.Task) Result {
	user := fmt.Sprintf("Title: %s\nDescription: %s", task.Title, task.Description)
	return o.complete(ctx, OpCategorize, user)
}

// Estimate asks for an effort estimate in hours.
func (o *OpenAI) Estimate(ctx context.Context, task tasks.Task) Result {
	user := fmt.Sprintf("Title: %s\nDescription: %s\nCategory: %s",
		task.Title, task.Description, categoryOf(task))
	return o.complete(ctx, OpEstimate, user)
}

// AnalyzeRisks asks for a risk analysis only.
func (o *OpenAI) AnalyzeRisks(ctx context.Context, task tasks.Task) Result {
	user := fmt.Sprintf("Title: %s\nDescription: %s\nCategory: %s",
		task.Title, task.Description, categoryOf(task))
	return o.complete(ctx, OpAudit, user)
}

// GenerateMitigation asks for a mitigation plan for analysis.
func (o *OpenAI) GenerateMitigation(ctx context.Context, task tasks.Task, analysis string) Result {
	user := fmt.Sprintf("Title: %s\nDescription: %s\nCategory: %s\nRisk analysis: %s",
		task.Title, task.Description, categoryOf(task), analysis)
	return o.complete(ctx, OpMitigation, user)
}

func (o *OpenAI) complete(ctx context.Context, op Operation, user string) Result {
	params := o.cfg.ParamsFor(op)
	model := o.cfg.model()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.cfg.SystemPrompt(op)},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:      wireTemperature(params.Temperature),
		MaxTokens:        params.MaxTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		msg := errorMessage(err)
		o.logger.WarnCtx("completion failed", map[string]any{
			"operation": string(op),
			"model":     model,
			"error":     msg,
		})
		return Result{Error: msg, Duration: elapsed}
	}
	if len(resp.Choices) == 0 {
		return Result{Error: "unexpected error: response contained no choices", Duration: elapsed}
	}

	result := Result{
		Text:           strings.TrimSpace(resp.Choices[0].Message.Content),
		ProcessingTime: math.Round(elapsed.Seconds()*1000) / 1000,
		Model:          model,
		Duration:       elapsed,
	}
	if u := resp.Usage; u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
		in, out, total := u.PromptTokens, u.CompletionTokens, u.TotalTokens
		result.InputTokens = &in
		result.OutputTokens = &out
		result.TotalTokens = &total
	}

	o.logger.DebugCtx("completion finished", map[string]any{
		"operation":    string(op),
		"model":        model,
		"total_tokens": result.Tokens(),
		"duration_ms":  elapsed.Milliseconds(),
	})
	return result
}

// wireTemperature keeps a configured 0 on the wire. The request encoder omits
// a zero temperature, which would leave the backend default (1) in effect.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// errorMessage passes backend errors through with their own message and
// prefixes anything else.
func errorMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Error()
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Error()
	}
	return "unexpected error: " + err.Error()
}

func categoryOf(task tasks.Task) string {
	if task.Category == nil || strings.TrimSpace(*task.Category) == "" {
		return notSpecified
	}
	return *task.Category
}
