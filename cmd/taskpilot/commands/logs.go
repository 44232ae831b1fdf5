package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View logs",
	Long: `View taskpilot logs.

Displays recent log entries. Use --follow to stream logs in real-time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		follow, _ := cmd.Flags().GetBool("follow")
		export, _ := cmd.Flags().GetString("export")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logDir := cfg.Logging.Path
		out := cmd.OutOrStdout()

		if export != "" {
			return exportLogs(out, logDir, export)
		}

		if follow {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followLogs(ctx, out, logDir, tail)
		}

		return showLogs(out, logDir, tail)
	},
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().StringP("export", "e", "", "Export logs to file")
	rootCmd.AddCommand(logsCmd)
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	TaskID    *int      `json:"task_id,omitempty"`
}

func logFiles(logDir string) ([]string, error) {
	files, err := logging.LogFiles(logDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading log dir: %w", err)
	}
	return files, nil
}

func showLogs(w io.Writer, logDir string, n int) error {
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Fprintln(w, "No log files found.")
		return nil
	}

	for _, line := range readLastLines(files, n) {
		printLogLine(w, line)
	}
	return nil
}

func followLogs(ctx context.Context, w io.Writer, logDir string, initialLines int) error {
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}

	if len(files) > 0 && initialLines > 0 {
		for _, line := range readLastLines(files, initialLines) {
			printLogLine(w, line)
		}
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logDir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	currentFile := currentLogFile(logDir)
	var file *os.File
	var reader *bufio.Reader
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	if currentFile != "" {
		file, err = os.Open(currentFile)
		if err == nil {
			_, _ = file.Seek(0, io.SeekEnd)
			reader = bufio.NewReader(file)
		}
	}

	fmt.Fprintln(w, "--- Following logs (Ctrl+C to exit) ---")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Date rollover starts a new file.
			if newFile := currentLogFile(logDir); newFile != currentFile && newFile != "" {
				if file != nil {
					_ = file.Close()
				}
				currentFile = newFile
				file, err = os.Open(currentFile)
				if err != nil {
					file, reader = nil, nil
					continue
				}
				reader = bufio.NewReader(file)
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && reader != nil {
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						break
					}
					printLogLine(w, strings.TrimSuffix(line, "\n"))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func exportLogs(w io.Writer, logDir, outFile string) error {
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no log files found")
	}

	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	totalLines := 0
	bw := bufio.NewWriter(out)

	// Oldest file first.
	for i := len(files) - 1; i >= 0; i-- {
		for _, line := range readFileLines(files[i]) {
			_, _ = bw.WriteString(line + "\n")
			totalLines++
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}

	fmt.Fprintf(w, "Exported %d log lines to %s\n", totalLines, outFile)
	return nil
}

func currentLogFile(logDir string) string {
	path := filepath.Join(logDir, logging.FileName(time.Now()))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// readLastLines returns the last n lines across files, which are ordered
// newest first.
func readLastLines(files []string, n int) []string {
	var lines []string

	for _, file := range files {
		if len(lines) >= n {
			break
		}

		fileLines := readFileLines(file)
		remaining := n - len(lines)

		if len(fileLines) <= remaining {
			lines = append(fileLines, lines...)
		} else {
			lines = append(fileLines[len(fileLines)-remaining:], lines...)
		}
	}

	return lines
}

func readFileLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func printLogLine(w io.Writer, line string) {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Message == "" {
		fmt.Fprintln(w, line)
		return
	}

	level := formatLogLevel(entry.Level)
	ts := entry.Time.Format("15:04:05")

	if entry.Component != "" {
		fmt.Fprintf(w, "%s %s [%s] %s", ts, level, entry.Component, entry.Message)
	} else {
		fmt.Fprintf(w, "%s %s %s", ts, level, entry.Message)
	}

	if entry.TaskID != nil {
		fmt.Fprintf(w, " task=%d", *entry.TaskID)
	}
	if entry.RequestID != "" {
		fmt.Fprintf(w, " request=%s", entry.RequestID)
	}
	if entry.Error != "" {
		fmt.Fprintf(w, " error=%s", entry.Error)
	}
	fmt.Fprintln(w)
}

func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "":
		return "???"
	default:
		if len(level) < 3 {
			return strings.ToUpper(level)
		}
		return strings.ToUpper(level[:3])
	}
}
