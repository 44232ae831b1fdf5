package tasks

import (
	"math"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 100

// MaxCategoryLength bounds free-form categories.
const MaxCategoryLength = 50

// Normalize rewrites accepted aliases to canonical values in place:
// priority and status aliases, and the casing of taxonomy categories. A
// blank category becomes nil. Unknown enum values are left untouched for
// Validate to report; categories outside the taxonomy are kept as given.
func (t *Task) Normalize() {
	if p, ok := ParsePriority(string(t.Priority)); ok {
		t.Priority = p
	}
	if s, ok := ParseStatus(string(t.Status)); ok {
		t.Status = s
	}
	if t.Category != nil {
		if strings.TrimSpace(*t.Category) == "" {
			t.Category = nil
		} else if c, ok := ParseCategory(*t.Category); ok {
			t.Category = StringPtr(string(c))
		}
	}
}

// Validate checks user-supplied fields and returns the first violation as a
// *ValidationError. It does not check the id.
func (t *Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: "must be at most 100 characters"}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be one of low, medium, high, blocking"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "must be one of pending, in_progress, in_review, done"}
	}
	if math.IsNaN(t.EffortHours) || math.IsInf(t.EffortHours, 0) || t.EffortHours <= 0 {
		return &ValidationError{Field: "effort_hours", Reason: "must be greater than 0"}
	}
	if strings.TrimSpace(t.AssignedTo) == "" {
		return &ValidationError{Field: "assigned_to", Reason: "must not be empty"}
	}
	if t.Category != nil && utf8.RuneCountInString(*t.Category) > MaxCategoryLength {
		return &ValidationError{Field: "category", Reason: "must be at most 50 characters"}
	}
	if t.RiskAnalysis != nil && strings.TrimSpace(*t.RiskAnalysis) == "" {
		return &ValidationError{Field: "risk_analysis", Reason: "must not be empty"}
	}
	if t.RiskMitigation != nil && strings.TrimSpace(*t.RiskMitigation) == "" {
		return &ValidationError{Field: "risk_mitigation", Reason: "must not be empty"}
	}
	if t.TokenUsage < 0 {
		return &ValidationError{Field: "token_usage", Reason: "must not be negative"}
	}
	return nil
}
