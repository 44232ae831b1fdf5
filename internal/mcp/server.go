// Package mcp exposes task lookup and the AI operations as MCP tools so
// coding assistants can drive taskpilot over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/manager"
	"github.com/marcus/taskpilot/internal/tasks"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// TaskReader is the read side of the task manager.
type TaskReader interface {
	GetByID(id int) (*tasks.Task, error)
	Find(f manager.Filter) ([]tasks.Task, error)
}

// AIService runs the AI operations. *orchestrator.Orchestrator satisfies it.
type AIService interface {
	Describe(ctx context.Context, id int) (*tasks.Task, error)
	Categorize(ctx context.Context, id int) (*tasks.Task, error)
	Estimate(ctx context.Context, id int) (*tasks.Task, error)
	Audit(ctx context.Context, id int) (*tasks.Task, error)
}

// Server wraps the task services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	tasks  TaskReader
	ai     AIService
	logger *logging.Logger
}

// NewServer creates an MCP server. ai may be nil, in which case the AI tools
// report an error result.
func NewServer(reader TaskReader, ai AIService, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		tasks:  reader,
		ai:     ai,
		logger: logging.Component("mcp"),
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "taskpilot", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying server for in-memory transports.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

type taskIDInput struct {
	TaskID int `json:"task_id" jsonschema:"the numeric task id"`
}

type listTasksInput struct {
	Status     string `json:"status,omitempty" jsonschema:"filter by status (pending, in_progress, in_review, done)"`
	Priority   string `json:"priority,omitempty" jsonschema:"filter by priority (low, medium, high, blocking)"`
	AssignedTo string `json:"assigned_to,omitempty" jsonschema:"filter by assignee, case-insensitive"`
	Category   string `json:"category,omitempty" jsonschema:"filter by category, case-insensitive"`
}

type taskOutput struct {
	Task tasks.Task      `json:"task"`
	AI   tasks.AISummary `json:"ai"`
}

type listTasksOutput struct {
	Tasks []tasks.Task `json:"tasks"`
	Count int          `json:"count"`
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks, optionally filtered by status, priority, assignee or category.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by id, including which AI fields it carries.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "describe_task",
		Description: "Generate a description for a task with the AI backend and store it.",
	}, s.aiTool("describe", func(ctx context.Context, id int) (*tasks.Task, error) { return s.ai.Describe(ctx, id) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "categorize_task",
		Description: "Assign a category to a task with the AI backend and store it.",
	}, s.aiTool("categorize", func(ctx context.Context, id int) (*tasks.Task, error) { return s.ai.Categorize(ctx, id) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "estimate_task",
		Description: "Estimate a task's effort in hours with the AI backend and store it.",
	}, s.aiTool("estimate", func(ctx context.Context, id int) (*tasks.Task, error) { return s.ai.Estimate(ctx, id) }))

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "audit_task",
		Description: "Run a risk analysis and mitigation plan for a task and store both.",
	}, s.aiTool("audit", func(ctx context.Context, id int) (*tasks.Task, error) { return s.ai.Audit(ctx, id) }))
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	var f manager.Filter
	if input.Status != "" {
		st, ok := tasks.ParseStatus(input.Status)
		if !ok {
			return errorResult(fmt.Sprintf("invalid status %q: must be one of pending, in_progress, in_review, done", input.Status)), listTasksOutput{}, nil
		}
		f.Status = st
	}
	if input.Priority != "" {
		p, ok := tasks.ParsePriority(input.Priority)
		if !ok {
			return errorResult(fmt.Sprintf("invalid priority %q: must be one of low, medium, high, blocking", input.Priority)), listTasksOutput{}, nil
		}
		f.Priority = p
	}
	f.AssignedTo = input.AssignedTo
	f.Category = input.Category

	list, err := s.tasks.Find(f)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}
	if list == nil {
		list = []tasks.Task{}
	}
	return nil, listTasksOutput{Tasks: list, Count: len(list)}, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.tasks.GetByID(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %d: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, toOutput(task), nil
}

func (s *Server) aiTool(op string, run func(context.Context, int) (*tasks.Task, error)) gomcp.ToolHandlerFor[taskIDInput, taskOutput] {
	return func(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
		if s.ai == nil {
			return errorResult("AI operations are not configured (set ai.api_key or OPENAI_API_KEY)"), taskOutput{}, nil
		}

		s.logger.DebugCtx("tool call", map[string]any{"operation": op, "task_id": input.TaskID})
		task, err := run(ctx, input.TaskID)
		if err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				return errorResult(fmt.Sprintf("task %d not found", input.TaskID)), taskOutput{}, nil
			}
			return errorResult(fmt.Sprintf("%s task %d: %s", op, input.TaskID, err)), taskOutput{}, nil
		}
		return nil, toOutput(task), nil
	}
}

func toOutput(t *tasks.Task) taskOutput {
	return taskOutput{Task: *t, AI: t.AIFieldsSummary()}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
