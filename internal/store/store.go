// Package store persists the whole task collection as a single JSON file.
// Every save rewrites the file; there is no merge or append.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/tasks"
)

// ErrCorrupt is returned when the tasks file exists but does not hold a JSON
// array of tasks.
var ErrCorrupt = errors.New("tasks file is corrupt")

// Store loads and saves the task collection as one unit.
type Store interface {
	Load() ([]tasks.Task, error)
	Save([]tasks.Task) error
}

// DefaultPath returns the default tasks file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskpilot", "tasks.json")
}

// File is a Store backed by a JSON array on disk.
type File struct {
	path string
}

// NewFile returns a File store for path, creating the parent directory and
// an empty collection if nothing exists there yet.
func NewFile(path string) (*File, error) {
	if path == "" {
		path = DefaultPath()
	}
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]\n"), 0644); err != nil {
			return nil, fmt.Errorf("initializing tasks file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking tasks file: %w", err)
	}

	return &File{path: path}, nil
}

// Path returns the resolved file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the whole collection. An empty file is an empty collection.
// Records written with alias enum values come back in canonical form.
func (f *File) Load() ([]tasks.Task, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []tasks.Task{}, nil
	}

	var loaded []tasks.Task
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, f.path, err)
	}
	if loaded == nil {
		loaded = []tasks.Task{}
	}
	for i := range loaded {
		loaded[i].Normalize()
	}
	return loaded, nil
}

// Save replaces the persisted collection with list.
func (f *File) Save(list []tasks.Task) error {
	if list == nil {
		list = []tasks.Task{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("marshaling tasks: %w", err)
	}

	// Write atomically via temp file
	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing tasks file: %w", err)
	}

	if err := os.Rename(tmpFile, f.path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("renaming tasks file: %w", err)
	}

	return nil
}

const backupPrefix = "tasks-"

// Backup copies the current file into dir and keeps only the newest keep
// backups (keep <= 0 keeps everything). It returns the new backup path.
func (f *File) Backup(dir string, keep int) (string, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	src, err := os.Open(f.path)
	if err != nil {
		return "", fmt.Errorf("opening tasks file: %w", err)
	}
	defer src.Close()

	name := backupPrefix + time.Now().Format("20060102-150405.000") + ".json"
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copying backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing backup: %w", err)
	}

	if keep > 0 {
		if err := pruneBackups(dir, keep); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// Backups lists backup files in dir, newest first.
func Backups(dir string) ([]string, error) {
	dir = expandPath(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, ".json") {
			files = append(files, filepath.Join(dir, name))
		}
	}

	// Timestamped names sort chronologically
	sort.Slice(files, func(i, j int) bool {
		return files[i] > files[j]
	})
	return files, nil
}

func pruneBackups(dir string, keep int) error {
	files, err := Backups(dir)
	if err != nil {
		return err
	}
	for _, old := range files[min(keep, len(files)):] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("removing old backup: %w", err)
		}
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
