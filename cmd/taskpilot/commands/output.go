package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// isInteractive reports whether stdout is a terminal. Override in tests.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

type outputStyles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	OK      lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
	Accent  lipgloss.Style
	Heading lipgloss.Style
}

func newOutputStyles() outputStyles {
	if !isInteractive() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return outputStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		Heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
	}
}

// outputFormat returns the validated --output value.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch strings.ToLower(format) {
	case "", formatTable:
		return formatTable, nil
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not structured", format)
	}
}

// printTasks writes tasks in the requested format.
func printTasks(w io.Writer, format string, list []tasks.Task) error {
	if format != formatTable {
		if list == nil {
			list = []tasks.Task{}
		}
		return writeStructured(w, format, list)
	}

	if len(list) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRIORITY\tSTATUS\tASSIGNEE\tHOURS\tCATEGORY\tTOKENS")
	for _, t := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			t.ID, truncate(t.Title, 40), t.Priority, t.Status, t.AssignedTo,
			formatHours(t.EffortHours), orDash(tasks.Value(t.Category)), t.TokenUsage)
	}
	return tw.Flush()
}

// printTask writes one task in the requested format.
func printTask(w io.Writer, format string, t *tasks.Task) error {
	if format != formatTable {
		return writeStructured(w, format, t)
	}

	st := newOutputStyles()
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", st.Label.Render(fmt.Sprintf("%-12s", label+":")), st.Value.Render(value))
	}

	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("#%d %s", t.ID, t.Title)))
	row("Priority", string(t.Priority))
	row("Status", string(t.Status))
	row("Assigned to", t.AssignedTo)
	row("Effort", formatHours(t.EffortHours)+"h")
	row("Category", orDash(tasks.Value(t.Category)))
	row("Tokens", strconv.Itoa(t.TokenUsage))

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Heading.Render(title))
		fmt.Fprintln(w, body)
	}
	section("Description", t.Description)
	section("Risk analysis", tasks.Value(t.RiskAnalysis))
	section("Risk mitigation", tasks.Value(t.RiskMitigation))
	return nil
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// confirm asks a yes/no question on in. Non-interactive sessions answer no
// unless assumeYes is set.
func confirm(in io.Reader, out io.Writer, prompt string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	if !isInteractive() {
		return false
	}
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
