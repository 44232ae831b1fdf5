package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/marcus/taskpilot/internal/manager"
	"github.com/marcus/taskpilot/internal/store"
	"github.com/marcus/taskpilot/internal/tasks"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeAI struct {
	calls []string
	err   error
}

func (f *fakeAI) run(op string, id int) (*tasks.Task, error) {
	f.calls = append(f.calls, op)
	if f.err != nil {
		return nil, f.err
	}
	t := sampleTask(id)
	t.Category = tasks.StringPtr("Backend")
	t.TokenUsage = 17
	return &t, nil
}

func (f *fakeAI) Describe(_ context.Context, id int) (*tasks.Task, error) {
	return f.run("describe", id)
}

func (f *fakeAI) Categorize(_ context.Context, id int) (*tasks.Task, error) {
	return f.run("categorize", id)
}

func (f *fakeAI) Estimate(_ context.Context, id int) (*tasks.Task, error) {
	return f.run("estimate", id)
}

func (f *fakeAI) Audit(_ context.Context, id int) (*tasks.Task, error) {
	return f.run("audit", id)
}

func sampleTask(id int) tasks.Task {
	return tasks.Task{
		ID:          id,
		Title:       "Add login",
		Priority:    tasks.PriorityHigh,
		EffortHours: 3,
		Status:      tasks.StatusPending,
		AssignedTo:  "Ana",
		TokenUsage:  5,
	}
}

func newTestServer(ai AIService, initial ...tasks.Task) *Server {
	return NewServer(manager.New(store.NewMemory(initial...)), ai, "test")
}

// callTool connects an in-memory client to srv and calls one tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}
	return result
}

func decodeStructured(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.StructuredContent == nil {
		t.Fatalf("no structured content (text: %s)", extractText(result))
	}
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshalling structured content: %v", err)
	}
}

func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListTools(t *testing.T) {
	srv := newTestServer(nil)
	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	t1, t2 := gomcp.NewInMemoryTransports()
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_tasks", "get_task", "describe_task", "categorize_task", "estimate_task", "audit_task"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestGetTask(t *testing.T) {
	srv := newTestServer(nil, sampleTask(1))

	result := callTool(t, srv, "get_task", map[string]any{"task_id": 1})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out taskOutput
	decodeStructured(t, result, &out)
	if out.Task.ID != 1 || out.Task.Title != "Add login" {
		t.Errorf("task = %+v", out.Task)
	}
	if out.AI.AIEnhanced {
		t.Error("plain task reported as AI enhanced")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv := newTestServer(nil)

	result := callTool(t, srv, "get_task", map[string]any{"task_id": 42})
	if !result.IsError {
		t.Fatal("expected error result for missing task")
	}
	if !strings.Contains(extractText(result), "task not found") {
		t.Errorf("error text = %q", extractText(result))
	}
}

func TestListTasks(t *testing.T) {
	done := sampleTask(2)
	done.Status = tasks.StatusDone
	srv := newTestServer(nil, sampleTask(1), done)

	var out listTasksOutput
	decodeStructured(t, callTool(t, srv, "list_tasks", map[string]any{}), &out)
	if out.Count != 2 {
		t.Errorf("count = %d, want 2", out.Count)
	}

	decodeStructured(t, callTool(t, srv, "list_tasks", map[string]any{"status": "completada"}), &out)
	if out.Count != 1 || out.Tasks[0].ID != 2 {
		t.Errorf("filtered = %+v, want task 2", out.Tasks)
	}

	result := callTool(t, srv, "list_tasks", map[string]any{"priority": "someday"})
	if !result.IsError {
		t.Error("expected error for invalid priority")
	}
}

func TestAITools(t *testing.T) {
	tests := []struct {
		tool string
		op   string
	}{
		{"describe_task", "describe"},
		{"categorize_task", "categorize"},
		{"estimate_task", "estimate"},
		{"audit_task", "audit"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			ai := &fakeAI{}
			srv := newTestServer(ai, sampleTask(3))

			result := callTool(t, srv, tt.tool, map[string]any{"task_id": 3})
			if result.IsError {
				t.Fatalf("expected success, got error: %s", extractText(result))
			}
			if len(ai.calls) != 1 || ai.calls[0] != tt.op {
				t.Errorf("calls = %v, want [%s]", ai.calls, tt.op)
			}

			var out taskOutput
			decodeStructured(t, result, &out)
			if out.Task.TokenUsage != 17 || !out.AI.Category {
				t.Errorf("output = %+v", out)
			}
		})
	}
}

func TestAIToolErrors(t *testing.T) {
	ai := &fakeAI{err: &tasks.RemoteError{Operation: "describe", Message: "rate limited"}}
	srv := newTestServer(ai, sampleTask(1))

	result := callTool(t, srv, "describe_task", map[string]any{"task_id": 1})
	if !result.IsError || !strings.Contains(extractText(result), "rate limited") {
		t.Errorf("result = %+v (%s)", result, extractText(result))
	}

	ai.err = tasks.ErrNotFound
	result = callTool(t, srv, "estimate_task", map[string]any{"task_id": 9})
	if !result.IsError || extractText(result) != "task 9 not found" {
		t.Errorf("not found text = %q", extractText(result))
	}
}

func TestAIToolsWithoutBackend(t *testing.T) {
	srv := newTestServer(nil, sampleTask(1))
	result := callTool(t, srv, "audit_task", map[string]any{"task_id": 1})
	if !result.IsError || !strings.Contains(extractText(result), "not configured") {
		t.Errorf("result text = %q", extractText(result))
	}
}
