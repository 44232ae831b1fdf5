package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcus/taskpilot/internal/manager"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  `List, show, add, update and delete tasks in the task file.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks in stored order.

Filters combine: --status, --priority, --assigned-to and --category must all
match. Status and priority accept the same aliases as the API.`,
	RunE: runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a task",
	Long: `Create a task. The id is assigned automatically.

Example:
  taskpilot task add --title "Add login" --priority high --effort 4 --assigned-to ana`,
	RunE: runTaskAdd,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a task",
	Long:  `Update a task. Only the flags given are changed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

func addTaskFieldFlags(fs *pflag.FlagSet) {
	fs.String("title", "", "Task title (at most 100 characters)")
	fs.String("description", "", "Task description")
	fs.String("priority", string(tasks.PriorityMedium), "Priority: "+joinValues(tasks.Priorities()))
	fs.Float64("effort", 1, "Estimated effort in hours")
	fs.String("status", string(tasks.StatusPending), "Status: "+joinValues(tasks.Statuses()))
	fs.String("assigned-to", "", "Assignee")
	fs.String("category", "", "Category, usually one of: "+joinValues(tasks.Categories()))
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func init() {
	taskListCmd.Flags().String("status", "", "Filter by status ("+joinValues(tasks.Statuses())+")")
	taskListCmd.Flags().String("priority", "", "Filter by priority ("+joinValues(tasks.Priorities())+")")
	taskListCmd.Flags().String("assigned-to", "", "Filter by assignee")
	taskListCmd.Flags().String("category", "", "Filter by category")

	addTaskFieldFlags(taskAddCmd.Flags())
	_ = taskAddCmd.MarkFlagRequired("title")
	_ = taskAddCmd.MarkFlagRequired("assigned-to")

	addTaskFieldFlags(taskUpdateCmd.Flags())

	taskDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	filter, err := listFilter(cmd.Flags())
	if err != nil {
		return err
	}

	a, err := appFor(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.manager.Find(filter)
	if err != nil {
		return err
	}
	return printTasks(cmd.OutOrStdout(), format, list)
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	a, err := appFor(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.manager.GetByID(id)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), format, t)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	var t tasks.Task
	if err := applyTaskFlags(cmd.Flags(), &t, true); err != nil {
		return err
	}

	a, err := appFor(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.manager.Create(t)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), format, created)
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	a, err := appFor(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	existing, err := a.manager.GetByID(id)
	if err != nil {
		return err
	}

	t := existing.Clone()
	if err := applyTaskFlags(cmd.Flags(), &t, false); err != nil {
		return err
	}

	updated, err := a.manager.Update(id, t)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), format, updated)
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")

	a, err := appFor(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.manager.GetByID(id)
	if err != nil {
		return err
	}
	if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete task %d %q?", t.ID, t.Title), yes) {
		return fmt.Errorf("not deleted (pass --yes to skip the prompt)")
	}

	deleted, err := a.manager.Delete(id)
	if err != nil {
		return err
	}
	if !deleted {
		return tasks.ErrNotFound
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
	return nil
}

// appFor loads config and opens the app for a command.
func appFor(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openApp(cfg, opts)
}

func parseTaskID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q: must be a positive integer", s)
	}
	return id, nil
}

// listFilter builds a manager filter from the list flags.
func listFilter(fs *pflag.FlagSet) (manager.Filter, error) {
	var f manager.Filter

	if v, _ := fs.GetString("status"); v != "" {
		s, ok := tasks.ParseStatus(v)
		if !ok {
			return f, &tasks.ValidationError{Field: "status", Reason: "must be one of pending, in_progress, in_review, done"}
		}
		f.Status = s
	}
	if v, _ := fs.GetString("priority"); v != "" {
		p, ok := tasks.ParsePriority(v)
		if !ok {
			return f, &tasks.ValidationError{Field: "priority", Reason: "must be one of low, medium, high, blocking"}
		}
		f.Priority = p
	}
	f.AssignedTo, _ = fs.GetString("assigned-to")
	f.Category, _ = fs.GetString("category")
	return f, nil
}

// applyTaskFlags copies task field flags onto t. With all set, every flag is
// applied, defaults included; otherwise only flags given on the command line.
// The result is normalized and validated.
func applyTaskFlags(fs *pflag.FlagSet, t *tasks.Task, all bool) error {
	use := func(name string) bool {
		return all || fs.Changed(name)
	}

	if use("title") {
		t.Title, _ = fs.GetString("title")
	}
	if use("description") {
		t.Description, _ = fs.GetString("description")
	}
	if use("priority") {
		v, _ := fs.GetString("priority")
		t.Priority = tasks.Priority(v)
	}
	if use("effort") {
		t.EffortHours, _ = fs.GetFloat64("effort")
	}
	if use("status") {
		v, _ := fs.GetString("status")
		t.Status = tasks.Status(v)
	}
	if use("assigned-to") {
		t.AssignedTo, _ = fs.GetString("assigned-to")
	}
	if use("category") {
		v, _ := fs.GetString("category")
		t.Category = tasks.StringPtr(v)
	}

	t.Normalize()
	return t.Validate()
}
