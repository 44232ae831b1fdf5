// Package manager implements CRUD over the task store. Every operation
// reloads the whole collection and every mutation saves it back.
package manager

import (
	"strings"
	"sync"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/store"
	"github.com/marcus/taskpilot/internal/tasks"
)

// Manager orchestrates task CRUD over a Store.
type Manager struct {
	store  store.Store
	mu     sync.Mutex // serializes load-modify-save cycles within this process
	logger *logging.Logger
}

// New creates a Manager backed by s.
func New(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.Component("manager"),
	}
}

// Filter selects tasks by field. Empty fields match everything; set fields
// are combined with AND.
type Filter struct {
	Status     tasks.Status
	Priority   tasks.Priority
	AssignedTo string
	Category   string
}

// GetAll returns the whole collection in stored order.
func (m *Manager) GetAll() ([]tasks.Task, error) {
	return m.store.Load()
}

// GetByID returns the task with the given id or tasks.ErrNotFound.
func (m *Manager) GetByID(id int) (*tasks.Task, error) {
	list, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, tasks.ErrNotFound
}

// Create stores task, assigning max(existing ids)+1 when it carries no id.
func (m *Manager) Create(task tasks.Task) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	if task.ID == 0 {
		maxID := 0
		for _, t := range list {
			if t.ID > maxID {
				maxID = t.ID
			}
		}
		task.ID = maxID + 1
	}

	list = append(list, task)
	if err := m.store.Save(list); err != nil {
		return nil, err
	}

	m.logger.InfoCtx("task created", map[string]any{"task_id": task.ID})
	created := task.Clone()
	return &created, nil
}

// Update replaces the task at id with task verbatim, including whatever id
// task carries. It returns tasks.ErrNotFound and saves nothing when no task
// matches.
func (m *Manager) Update(id int, task tasks.Task) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i] = task
		if err := m.store.Save(list); err != nil {
			return nil, err
		}
		m.logger.DebugCtx("task updated", map[string]any{"task_id": id})
		updated := task.Clone()
		return &updated, nil
	}
	return nil, tasks.ErrNotFound
}

// Delete removes the task with id. It reports false, without saving, when
// no task matches.
func (m *Manager) Delete(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load()
	if err != nil {
		return false, err
	}

	remaining := make([]tasks.Task, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			remaining = append(remaining, t)
		}
	}
	if len(remaining) == len(list) {
		return false, nil
	}

	if err := m.store.Save(remaining); err != nil {
		return false, err
	}
	m.logger.InfoCtx("task deleted", map[string]any{"task_id": id})
	return true, nil
}

// Find returns the tasks matching f in stored order.
func (m *Manager) Find(f Filter) ([]tasks.Task, error) {
	list, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	result := make([]tasks.Task, 0, len(list))
	for _, t := range list {
		if matches(t, f) {
			result = append(result, t)
		}
	}
	return result, nil
}

func matches(t tasks.Task, f Filter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssignedTo != "" && !strings.EqualFold(t.AssignedTo, f.AssignedTo) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(tasks.Value(t.Category), f.Category) {
		return false
	}
	return true
}
