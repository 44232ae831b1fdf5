// Package audit keeps an append-only trail of the AI operations applied to
// tasks. Events are written as JSON lines to one file per day.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/orchestrator"
)

const (
	filePrefix = "audit-"
	fileSuffix = ".jsonl"
	dateLayout = "2006-01-02"
)

// EventType categorizes audit events.
type EventType string

const (
	EventOperationStart    EventType = "operation_start"
	EventCall              EventType = "ai_call"
	EventOperationComplete EventType = "operation_complete"
	EventOperationError    EventType = "operation_error"
)

// Event is a single audit entry.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	TaskID     int       `json:"task_id"`
	TaskTitle  string    `json:"task_title,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Tokens     int       `json:"tokens,omitempty"`
	Error      string    `json:"error,omitempty"`
	SessionID  string    `json:"session_id"`
}

// Logger appends events to the current day's file.
type Logger struct {
	dir       string
	file      *os.File
	day       string
	mu        sync.Mutex
	sessionID string
	nowFunc   func() time.Time
}

// New creates a logger writing under dir.
func New(dir string) (*Logger, error) {
	if dir == "" {
		return nil, errors.New("audit dir is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	return &Logger{
		dir:       dir,
		sessionID: uuid.NewString(),
		nowFunc:   time.Now,
	}, nil
}

// Dir returns the audit directory.
func (l *Logger) Dir() string {
	return l.dir
}

// Log writes e, stamping the time and session. It opens a new file when the
// day changes.
func (l *Logger) Log(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = l.nowFunc()
	}
	e.SessionID = l.sessionID

	if err := l.rotate(e.Timestamp); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing audit log: %w", err)
	}
	return nil
}

// rotate makes sure the file for t's day is open. Callers hold mu.
func (l *Logger) rotate(t time.Time) error {
	day := t.Format(dateLayout)
	if l.file != nil && l.day == day {
		return nil
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("closing audit log: %w", err)
		}
		l.file = nil
	}

	path := filepath.Join(l.dir, filePrefix+day+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	l.file = f
	l.day = day
	return nil
}

// Handler converts orchestrator events into audit events. Write failures
// are logged and otherwise ignored.
func (l *Logger) Handler() orchestrator.EventHandler {
	logger := logging.Component("audit")
	return func(oe orchestrator.Event) {
		e := Event{
			Timestamp:  oe.Time,
			TaskID:     oe.TaskID,
			TaskTitle:  oe.TaskTitle,
			Operation:  string(oe.Operation),
			DurationMS: oe.Duration.Milliseconds(),
			Tokens:     oe.Tokens,
			Error:      oe.Error,
		}
		switch oe.Type {
		case orchestrator.EventOperationStart:
			e.EventType = EventOperationStart
		case orchestrator.EventCallEnd:
			e.EventType = EventCall
		case orchestrator.EventOperationEnd:
			e.EventType = EventOperationComplete
			if oe.Error != "" {
				e.EventType = EventOperationError
			}
		default:
			return
		}
		if err := l.Log(e); err != nil {
			logger.WarnCtx("audit write failed", map[string]any{"task_id": oe.TaskID, "error": err.Error()})
		}
	}
}

// Close closes the current file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Files returns the audit files in dir, newest first. A missing dir has no
// files.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading audit dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// ReadEvents reads the events in one file. Malformed lines are skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

// Query selects events from an audit dir.
type Query struct {
	TaskID int // 0 matches every task
	Limit  int // newest Limit events; 0 means all
}

// Recent returns the events in dir matching q, oldest first.
func Recent(dir string, q Query) ([]Event, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}

	var result []Event
	for _, file := range files {
		events, err := ReadEvents(file)
		if err != nil {
			return nil, err
		}
		var matched []Event
		for _, e := range events {
			if q.TaskID == 0 || e.TaskID == q.TaskID {
				matched = append(matched, e)
			}
		}
		result = append(matched, result...)
		if q.Limit > 0 && len(result) >= q.Limit {
			break
		}
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[len(result)-q.Limit:]
	}
	return result, nil
}
