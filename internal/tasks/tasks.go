// Package tasks defines the task record tracked by taskpilot, its enumerations
// and the error taxonomy shared by the store, manager and AI layers.
package tasks

import (
	"strings"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityBlocking Priority = "blocking"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
)

// Category is one entry of the fixed taxonomy the categorize operation
// asks the model to pick from.
type Category string

const (
	CategoryFrontend      Category = "Frontend"
	CategoryBackend       Category = "Backend"
	CategoryTesting       Category = "Testing"
	CategoryDevOps        Category = "DevOps"
	CategoryDatabase      Category = "Database"
	CategoryDocumentation Category = "Documentation"
	CategorySecurity      Category = "Security"
	CategoryPerformance   Category = "Performance"
	CategoryBugFix        Category = "Bug Fix"
	CategoryFeature       Category = "Feature"
)

var allPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityBlocking}

var allStatuses = []Status{StatusPending, StatusInProgress, StatusInReview, StatusDone}

var allCategories = []Category{
	CategoryFrontend,
	CategoryBackend,
	CategoryTesting,
	CategoryDevOps,
	CategoryDatabase,
	CategoryDocumentation,
	CategorySecurity,
	CategoryPerformance,
	CategoryBugFix,
	CategoryFeature,
}

// Aliases accepted on input. The first deployment of the service stored
// Spanish values, so clients still send them.
var priorityAliases = map[string]Priority{
	"baja":       PriorityLow,
	"media":      PriorityMedium,
	"alta":       PriorityHigh,
	"bloqueante": PriorityBlocking,
}

var statusAliases = map[string]Status{
	"pendiente":   StatusPending,
	"en progreso": StatusInProgress,
	"in progress": StatusInProgress,
	"in-progress": StatusInProgress,
	"en revisión": StatusInReview,
	"en revision": StatusInReview,
	"in review":   StatusInReview,
	"in-review":   StatusInReview,
	"completada":  StatusDone,
}

// Priorities returns every valid priority in ascending urgency.
func Priorities() []Priority {
	return append([]Priority(nil), allPriorities...)
}

// Statuses returns every valid status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// Categories returns the category taxonomy.
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// Valid reports whether p is one of the canonical priorities.
func (p Priority) Valid() bool {
	for _, v := range allPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParsePriority maps a canonical value or an accepted alias to a Priority.
func ParsePriority(s string) (Priority, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if p := Priority(key); p.Valid() {
		return p, true
	}
	p, ok := priorityAliases[key]
	return p, ok
}

// ParseStatus maps a canonical value or an accepted alias to a Status.
func ParseStatus(s string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if st := Status(key); st.Valid() {
		return st, true
	}
	st, ok := statusAliases[key]
	return st, ok
}

// ParseCategory matches s against the taxonomy, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	key := strings.TrimSpace(s)
	for _, c := range allCategories {
		if strings.EqualFold(string(c), key) {
			return c, true
		}
	}
	return "", false
}

// Task is the sole domain record. Optional AI fields are pointers so that a
// missing value round-trips as JSON null.
type Task struct {
	ID             int      `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description" yaml:"description"`
	Priority       Priority `json:"priority" yaml:"priority"`
	EffortHours    float64  `json:"effort_hours" yaml:"effort_hours"`
	Status         Status   `json:"status" yaml:"status"`
	AssignedTo     string   `json:"assigned_to" yaml:"assigned_to"`
	Category       *string  `json:"category" yaml:"category"`
	RiskAnalysis   *string  `json:"risk_analysis" yaml:"risk_analysis"`
	RiskMitigation *string  `json:"risk_mitigation" yaml:"risk_mitigation"`
	TokenUsage     int      `json:"token_usage" yaml:"token_usage"`
}

// AISummary reports which AI-derived fields a task carries.
type AISummary struct {
	Category       bool `json:"category"`
	RiskAnalysis   bool `json:"risk_analysis"`
	RiskMitigation bool `json:"risk_mitigation"`
	AIEnhanced     bool `json:"ai_enhanced"`
	RiskComplete   bool `json:"risk_complete"`
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// Value returns the pointed-to string, or "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// IsAIEnhanced reports whether at least one AI field is filled in.
func (t *Task) IsAIEnhanced() bool {
	return present(t.Category) || present(t.RiskAnalysis) || present(t.RiskMitigation)
}

// HasRiskAnalysis reports whether both the analysis and its mitigation exist.
func (t *Task) HasRiskAnalysis() bool {
	return present(t.RiskAnalysis) && present(t.RiskMitigation)
}

// AIFieldsSummary returns the state of every AI field.
func (t *Task) AIFieldsSummary() AISummary {
	return AISummary{
		Category:       present(t.Category),
		RiskAnalysis:   present(t.RiskAnalysis),
		RiskMitigation: present(t.RiskMitigation),
		AIEnhanced:     t.IsAIEnhanced(),
		RiskComplete:   t.HasRiskAnalysis(),
	}
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	if t.Category != nil {
		c.Category = StringPtr(*t.Category)
	}
	if t.RiskAnalysis != nil {
		c.RiskAnalysis = StringPtr(*t.RiskAnalysis)
	}
	if t.RiskMitigation != nil {
		c.RiskMitigation = StringPtr(*t.RiskMitigation)
	}
	return c
}

// CloneForAI returns a copy of t with the named fields cleared. Field names
// use the JSON spelling; unknown names are ignored.
func (t Task) CloneForAI(exclude ...string) Task {
	c := t.Clone()
	for _, field := range exclude {
		switch field {
		case "description":
			c.Description = ""
		case "category":
			c.Category = nil
		case "risk_analysis":
			c.RiskAnalysis = nil
		case "risk_mitigation":
			c.RiskMitigation = nil
		case "assigned_to":
			c.AssignedTo = ""
		}
	}
	return c
}
