package store

import (
	"sync"

	"github.com/marcus/taskpilot/internal/tasks"
)

// Memory is an in-process Store. Load and Save copy the collection so
// callers never share task storage with it.
type Memory struct {
	mu    sync.Mutex
	tasks []tasks.Task
	saves int
}

// NewMemory returns a Memory store seeded with initial.
func NewMemory(initial ...tasks.Task) *Memory {
	return &Memory{tasks: cloneAll(initial)}
}

// Load returns a copy of the stored collection.
func (m *Memory) Load() ([]tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.tasks), nil
}

// Save replaces the stored collection.
func (m *Memory) Save(list []tasks.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = cloneAll(list)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneAll(list []tasks.Task) []tasks.Task {
	out := make([]tasks.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	return out
}
