package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/taskpilot/internal/tasks"
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
	t := sampleTasks()[id-1]
	t.Category = tasks.StringPtr("Backend")
	t.TokenUsage += 12
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

func sampleTasks() []tasks.Task {
	return []tasks.Task{
		{ID: 1, Title: "Login page", Priority: tasks.PriorityHigh, Status: tasks.StatusPending, EffortHours: 3, AssignedTo: "Ana", TokenUsage: 5},
		{ID: 2, Title: "Fix cache", Priority: tasks.PriorityBlocking, Status: tasks.StatusInProgress, EffortHours: 1, AssignedTo: "Luis"},
		{ID: 3, Title: "Write docs", Priority: tasks.PriorityLow, Status: tasks.StatusDone, EffortHours: 2, AssignedTo: "Ana", Description: "All of them"},
	}
}

func loaded(t *testing.T, ai AIRunner) Model {
	t.Helper()
	m := New(func() ([]tasks.Task, error) { return sampleTasks(), nil }, ai)
	msg := m.Init()()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func TestNew(t *testing.T) {
	m := New(nil, nil)
	if m == nil {
		t.Fatal("New() returned nil")
		return
	}
	if m.width != 80 || m.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", m.width, m.height)
	}
	if m.styles == nil {
		t.Error("expected styles to be initialized")
	}
}

func TestInitLoadsTasks(t *testing.T) {
	m := loaded(t, nil)
	if len(m.tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(m.tasks))
	}
	if got, ok := m.Selected(); !ok || got.ID != 1 {
		t.Errorf("Selected() = %v, %v, want task 1", got.ID, ok)
	}
}

func TestLoadError(t *testing.T) {
	m := New(func() ([]tasks.Task, error) { return nil, errors.New("disk gone") }, nil)
	updated, _ := m.Update(m.Init()())
	got := updated.(Model)
	if got.err == nil || !strings.Contains(got.View(), "disk gone") {
		t.Errorf("load error not shown: %v", got.err)
	}
}

func TestNavigation(t *testing.T) {
	m := loaded(t, nil)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "j")
	if m.selected != 2 {
		t.Errorf("selected = %d, want 2", m.selected)
	}
	m, _ = press(t, m, "down")
	if m.selected != 2 {
		t.Errorf("selected moved past the end: %d", m.selected)
	}
	m, _ = press(t, m, "k")
	m, _ = press(t, m, "up")
	m, _ = press(t, m, "up")
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
	m, _ = press(t, m, "G")
	if m.selected != 2 {
		t.Errorf("G selected = %d, want 2", m.selected)
	}
	m, _ = press(t, m, "g")
	if m.selected != 0 {
		t.Errorf("g selected = %d, want 0", m.selected)
	}
}

func TestEnterTogglesDetail(t *testing.T) {
	m := loaded(t, nil)
	m, _ = press(t, m, "G")
	m, _ = press(t, m, "enter")
	if !m.showDetail {
		t.Fatal("enter did not open detail")
	}
	if view := m.View(); !strings.Contains(view, "All of them") || !strings.Contains(view, "#3 Write docs") {
		t.Error("detail pane missing selected task")
	}
	m, _ = press(t, m, "enter")
	if m.showDetail {
		t.Error("second enter did not close detail")
	}
}

func TestReload(t *testing.T) {
	calls := 0
	m := New(func() ([]tasks.Task, error) {
		calls++
		return sampleTasks()[:calls], nil
	}, nil)
	updated, _ := m.Update(m.Init()())
	m2 := updated.(Model)
	m2, _ = press(t, m2, "G")

	m2, cmd := press(t, m2, "r")
	if cmd == nil {
		t.Fatal("r returned no command")
	}
	updated, _ = m2.Update(cmd())
	m2 = updated.(Model)
	if len(m2.tasks) != 2 {
		t.Errorf("tasks after reload = %d, want 2", len(m2.tasks))
	}
}

func TestQuit(t *testing.T) {
	m := loaded(t, nil)
	m, cmd := press(t, m, "q")
	if !m.quitting {
		t.Error("expected quitting after q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if m.View() != "" {
		t.Error("View() should be empty when quitting")
	}
}

func TestAIOperation(t *testing.T) {
	ai := &fakeAI{}
	m := loaded(t, ai)

	m, cmd := press(t, m, "c")
	if m.busy != "categorize" || cmd == nil {
		t.Fatalf("busy = %q, cmd = %v", m.busy, cmd)
	}
	if !strings.Contains(m.View(), "running categorize") {
		t.Error("busy state not rendered")
	}

	// A second key while busy is ignored.
	_, again := press(t, m, "e")
	if again != nil {
		t.Error("operation started while another was running")
	}

	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if m.busy != "" {
		t.Error("busy not cleared")
	}
	if tasks.Value(m.tasks[0].Category) != "Backend" || m.tasks[0].TokenUsage != 17 {
		t.Errorf("task not replaced: %+v", m.tasks[0])
	}
	if len(ai.calls) != 1 || ai.calls[0] != "categorize" {
		t.Errorf("calls = %v", ai.calls)
	}
}

func TestAIOperationError(t *testing.T) {
	ai := &fakeAI{err: &tasks.RemoteError{Operation: "describe", Message: "rate limited"}}
	m := loaded(t, ai)

	m, cmd := press(t, m, "d")
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if m.err == nil || !strings.Contains(m.err.Error(), "rate limited") {
		t.Errorf("err = %v", m.err)
	}
	if m.tasks[0].TokenUsage != 5 {
		t.Error("failed operation changed the task")
	}
}

func TestAIKeysWithoutBackend(t *testing.T) {
	m := loaded(t, nil)
	m, cmd := press(t, m, "a")
	if cmd != nil {
		t.Error("expected no command without AI backend")
	}
	if !strings.Contains(m.message, "not configured") {
		t.Errorf("message = %q", m.message)
	}
}

func TestWindowResize(t *testing.T) {
	m := loaded(t, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := updated.(Model)
	if got.width != 120 || got.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", got.width, got.height)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New(func() ([]tasks.Task, error) { return nil, nil }, nil)
	updated, _ := m.Update(m.Init()())
	if view := updated.(Model).View(); !strings.Contains(view, "No tasks yet") {
		t.Error("empty list message missing")
	}
}
