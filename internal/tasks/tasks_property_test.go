package tasks

import (
	"encoding/json"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

func optionalString(t *rapid.T, label string) *string {
	if rapid.Bool().Draw(t, label+"_set") {
		s := rapid.String().Draw(t, label)
		return &s
	}
	return nil
}

func drawTask(t *rapid.T) Task {
	return Task{
		ID:             rapid.IntRange(0, 1_000_000).Draw(t, "id"),
		Title:          rapid.String().Draw(t, "title"),
		Description:    rapid.String().Draw(t, "description"),
		Priority:       rapid.SampledFrom(allPriorities).Draw(t, "priority"),
		EffortHours:    rapid.Float64Range(0.1, 1000).Draw(t, "effort"),
		Status:         rapid.SampledFrom(allStatuses).Draw(t, "status"),
		AssignedTo:     rapid.String().Draw(t, "assigned_to"),
		Category:       optionalString(t, "category"),
		RiskAnalysis:   optionalString(t, "risk_analysis"),
		RiskMitigation: optionalString(t, "risk_mitigation"),
		TokenUsage:     rapid.IntRange(0, 1_000_000).Draw(t, "token_usage"),
	}
}

// Property: encoding then decoding a task yields an equal task.
func TestProperty_JSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := drawTask(rt)
		data, err := json.Marshal(task)
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}
		var got Task
		if err := json.Unmarshal(data, &got); err != nil {
			rt.Fatalf("unmarshal: %v", err)
		}
		if !reflect.DeepEqual(got, task) {
			rt.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, task)
		}
	})
}

// Property: Clone never shares optional field storage with the original.
func TestProperty_CloneIsDeep(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := drawTask(rt)
		c := task.Clone()
		if !reflect.DeepEqual(c, task) {
			rt.Fatalf("clone differs from original")
		}
		if task.Category != nil && c.Category == task.Category {
			rt.Fatalf("category pointer shared")
		}
		if task.RiskAnalysis != nil && c.RiskAnalysis == task.RiskAnalysis {
			rt.Fatalf("risk_analysis pointer shared")
		}
	})
}
