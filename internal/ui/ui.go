// Package ui provides a terminal task browser built on Bubbletea.
package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/taskpilot/internal/tasks"
)

// Loader returns the current task collection.
type Loader func() ([]tasks.Task, error)

// AIRunner runs AI operations on a task. *orchestrator.Orchestrator
// satisfies it.
type AIRunner interface {
	Describe(ctx context.Context, id int) (*tasks.Task, error)
	Categorize(ctx context.Context, id int) (*tasks.Task, error)
	Estimate(ctx context.Context, id int) (*tasks.Task, error)
	Audit(ctx context.Context, id int) (*tasks.Task, error)
}

// Model holds the TUI state.
type Model struct {
	width      int
	height     int
	quitting   bool
	showDetail bool

	tasks    []tasks.Task
	selected int
	scroll   int

	busy    string // operation in flight, empty when idle
	message string
	err     error

	load   Loader
	ai     AIRunner
	styles *Styles
}

// Styles holds lipgloss styles for the UI.
type Styles struct {
	Border lipgloss.Style

	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Muted lipgloss.Style

	StatusOK      lipgloss.Style
	StatusWarn    lipgloss.Style
	StatusError   lipgloss.Style
	StatusRunning lipgloss.Style

	TaskSelected lipgloss.Style

	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Label: lipgloss.NewStyle().Foreground(subtle),
		Value: lipgloss.NewStyle().Bold(true),
		Muted: lipgloss.NewStyle().Foreground(subtle),

		StatusOK:      lipgloss.NewStyle().Foreground(green).Bold(true),
		StatusWarn:    lipgloss.NewStyle().Foreground(yellow).Bold(true),
		StatusError:   lipgloss.NewStyle().Foreground(red).Bold(true),
		StatusRunning: lipgloss.NewStyle().Foreground(blue).Bold(true),

		TaskSelected: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Bold(true),

		HelpKey:  lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpText: lipgloss.NewStyle().Foreground(subtle),
	}
}

type tasksLoadedMsg struct {
	tasks []tasks.Task
	err   error
}

type operationDoneMsg struct {
	op   string
	task *tasks.Task
	err  error
}

// New creates a model that reads tasks through load. ai may be nil, which
// disables the AI keys.
func New(load Loader, ai AIRunner) *Model {
	return &Model{
		width:  80,
		height: 24,
		load:   load,
		ai:     ai,
		styles: newStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		if load == nil {
			return tasksLoadedMsg{}
		}
		list, err := load()
		return tasksLoadedMsg{tasks: list, err: err}
	}
}

func (m Model) operationCmd(op string, id int) tea.Cmd {
	ai := m.ai
	return func() tea.Msg {
		var run func(context.Context, int) (*tasks.Task, error)
		switch op {
		case "describe":
			run = ai.Describe
		case "categorize":
			run = ai.Categorize
		case "estimate":
			run = ai.Estimate
		default:
			run = ai.Audit
		}
		task, err := run(context.Background(), id)
		return operationDoneMsg{op: op, task: task, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tasksLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.tasks = msg.tasks
			if m.selected >= len(m.tasks) {
				m.selected = max(len(m.tasks)-1, 0)
			}
		}
		return m, nil

	case operationDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
			return m, nil
		}
		m.err = nil
		m.message = fmt.Sprintf("%s finished for task %d (%d tokens total)", msg.op, msg.task.ID, msg.task.TokenUsage)
		m.replace(*msg.task)
		return m, nil
	}

	return m, nil
}

func (m *Model) replace(t tasks.Task) {
	for i := range m.tasks {
		if m.tasks[i].ID == t.ID {
			m.tasks[i] = t
			return
		}
	}
}

var operationKeys = map[string]string{
	"d": "describe",
	"c": "categorize",
	"e": "estimate",
	"a": "audit",
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.tasks)-1 {
			m.selected++
		}
		return m, nil

	case "home", "g":
		m.selected = 0
		return m, nil

	case "end", "G":
		m.selected = max(len(m.tasks)-1, 0)
		return m, nil

	case "enter":
		m.showDetail = !m.showDetail
		return m, nil

	case "r":
		m.message = "reloaded"
		return m, m.loadCmd()

	case "d", "c", "e", "a":
		if m.ai == nil {
			m.message = "AI operations are not configured"
			return m, nil
		}
		if m.busy != "" || len(m.tasks) == 0 {
			return m, nil
		}
		op := operationKeys[key]
		m.busy = op
		m.message = ""
		return m, m.operationCmd(op, m.tasks[m.selected].ID)
	}

	return m, nil
}

// Selected returns the highlighted task, if any.
func (m Model) Selected() (tasks.Task, bool) {
	if len(m.tasks) == 0 {
		return tasks.Task{}, false
	}
	return m.tasks[m.selected], true
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	bodyHeight := m.height - 4 // header, status line, help bar
	listWidth := m.width
	if m.showDetail {
		listWidth = m.width / 2
	}

	list := m.styles.Border.Width(listWidth - 2).Height(bodyHeight - 2).
		Render(m.renderList(listWidth-2, bodyHeight-2))
	body := list
	if m.showDetail {
		detail := m.styles.Border.Width(m.width - listWidth - 2).Height(bodyHeight - 2).
			Render(m.renderDetail())
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusLine(),
		m.renderHelpBar(),
	)
}

func (m Model) renderHeader() string {
	total := 0
	for _, t := range m.tasks {
		total += t.TokenUsage
	}
	return m.styles.Title.Render("taskpilot") + "  " +
		m.styles.Muted.Render(fmt.Sprintf("%d tasks, %d tokens used", len(m.tasks), total))
}

func (m Model) renderList(width, height int) string {
	if len(m.tasks) == 0 {
		return m.styles.Muted.Render("No tasks yet")
	}

	visible := max(height, 1)
	scroll := m.scroll
	if m.selected < scroll {
		scroll = m.selected
	} else if m.selected >= scroll+visible {
		scroll = m.selected - visible + 1
	}

	var b strings.Builder
	for i := scroll; i < len(m.tasks) && i < scroll+visible; i++ {
		t := m.tasks[i]
		title := t.Title
		if maxLen := width - 40; maxLen > 3 && len(title) > maxLen {
			title = title[:maxLen-3] + "..."
		}
		line := fmt.Sprintf("%4d  %-11s  %-8s  %6d  %s",
			t.ID, t.Status, t.Priority, t.TokenUsage, title)
		if i == m.selected {
			line = m.styles.TaskSelected.Render(line)
		} else {
			line = m.statusStyle(t.Status).Render(line[:17]) + line[17:]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.tasks) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", m.selected+1, len(m.tasks))))
	}
	return b.String()
}

func (m Model) renderDetail() string {
	t, ok := m.Selected()
	if !ok {
		return m.styles.Muted.Render("Nothing selected")
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(fmt.Sprintf("#%d %s", t.ID, t.Title)))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(m.styles.Label.Render(label + ": "))
		if value == "" {
			b.WriteString(m.styles.Muted.Render("none"))
		} else {
			b.WriteString(m.styles.Value.Render(value))
		}
		b.WriteString("\n")
	}
	field("Status", string(t.Status))
	b.WriteString(m.styles.Label.Render("Priority: "))
	b.WriteString(m.priorityStyle(t.Priority).Render(string(t.Priority)))
	b.WriteString("\n")
	field("Assigned to", t.AssignedTo)
	field("Effort", fmt.Sprintf("%.1fh", t.EffortHours))
	field("Category", tasks.Value(t.Category))
	field("Tokens", fmt.Sprintf("%d", t.TokenUsage))

	section := func(label, text string) {
		if text == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Label.Render(label))
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	section("Description", t.Description)
	section("Risk analysis", tasks.Value(t.RiskAnalysis))
	section("Mitigation", tasks.Value(t.RiskMitigation))

	return b.String()
}

func (m Model) renderStatusLine() string {
	switch {
	case m.busy != "":
		return m.styles.StatusRunning.Render("running " + m.busy + "...")
	case m.err != nil:
		return m.styles.StatusError.Render("error: " + m.err.Error())
	case m.message != "":
		return m.styles.StatusOK.Render(m.message)
	}
	return ""
}

func (m Model) statusStyle(s tasks.Status) lipgloss.Style {
	switch s {
	case tasks.StatusDone:
		return m.styles.StatusOK
	case tasks.StatusInProgress:
		return m.styles.StatusRunning
	case tasks.StatusInReview:
		return m.styles.StatusWarn
	default:
		return m.styles.Muted
	}
}

func (m Model) priorityStyle(p tasks.Priority) lipgloss.Style {
	switch p {
	case tasks.PriorityBlocking:
		return m.styles.StatusError
	case tasks.PriorityHigh:
		return m.styles.StatusWarn
	default:
		return m.styles.Value
	}
}

func (m Model) renderHelpBar() string {
	helpItems := []struct {
		key  string
		desc string
	}{
		{"j/k", "up/down"},
		{"enter", "details"},
		{"r", "reload"},
		{"d/c/e/a", "describe/categorize/estimate/audit"},
		{"q", "quit"},
	}

	var parts []string
	for _, item := range helpItems {
		parts = append(parts, fmt.Sprintf("%s %s",
			m.styles.HelpKey.Render(item.key),
			m.styles.HelpText.Render(item.desc),
		))
	}
	return "  " + strings.Join(parts, "  |  ")
}

// Run starts the TUI.
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
