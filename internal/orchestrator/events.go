package orchestrator

import (
	"time"

	"github.com/marcus/taskpilot/internal/providers"
)

// EventType classifies orchestrator lifecycle events.
type EventType int

const (
	EventOperationStart EventType = iota // AI operation begins for a task
	EventCallEnd                         // one completion returned
	EventOperationEnd                    // operation finished, persisted or not
)

func (t EventType) String() string {
	switch t {
	case EventOperationStart:
		return "operation_start"
	case EventCallEnd:
		return "call_end"
	case EventOperationEnd:
		return "operation_end"
	default:
		return "unknown"
	}
}

// Event carries data about an orchestrator lifecycle event.
type Event struct {
	Type      EventType
	Time      time.Time
	Operation providers.Operation
	TaskID    int
	TaskTitle string
	Tokens    int           // tokens reported by the call or, at the end, added to the task
	Duration  time.Duration // for EventCallEnd/EventOperationEnd: elapsed time
	Error     string        // error message if applicable
}

// EventHandler is a callback that receives orchestrator events.
type EventHandler func(Event)
