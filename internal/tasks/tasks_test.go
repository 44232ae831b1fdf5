package tasks

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func sampleTask() Task {
	return Task{
		ID:          1,
		Title:       "Set up CI",
		Description: "Configure the pipeline",
		Priority:    PriorityMedium,
		EffortHours: 2.5,
		Status:      StatusPending,
		AssignedTo:  "Carlos",
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
		ok   bool
	}{
		{"low", PriorityLow, true},
		{"HIGH", PriorityHigh, true},
		{" blocking ", PriorityBlocking, true},
		{"baja", PriorityLow, true},
		{"media", PriorityMedium, true},
		{"alta", PriorityHigh, true},
		{"bloqueante", PriorityBlocking, true},
		{"urgent", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePriority(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePriority(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"in_progress", StatusInProgress, true},
		{"in_review", StatusInReview, true},
		{"done", StatusDone, true},
		{"pendiente", StatusPending, true},
		{"en progreso", StatusInProgress, true},
		{"En Revisión", StatusInReview, true},
		{"completada", StatusDone, true},
		{"blocked", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("bug fix"); !ok || c != CategoryBugFix {
		t.Errorf("ParseCategory(bug fix) = (%q, %v), want (%q, true)", c, ok, CategoryBugFix)
	}
	if _, ok := ParseCategory("Marketing"); ok {
		t.Error("ParseCategory(Marketing) ok = true, want false")
	}
	if got := len(Categories()); got != 10 {
		t.Errorf("len(Categories()) = %d, want 10", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	full := sampleTask()
	full.Category = StringPtr("Backend")
	full.RiskAnalysis = StringPtr("Flaky runners")
	full.RiskMitigation = StringPtr("Pin runner images")
	full.TokenUsage = 42

	for name, task := range map[string]Task{"plain": sampleTask(), "ai fields": full} {
		data, err := json.Marshal(task)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		var got Task
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if !reflect.DeepEqual(got, task) {
			t.Errorf("%s: round trip = %+v, want %+v", name, got, task)
		}
	}
}

func TestJSONShapeUsesNulls(t *testing.T) {
	data, err := json.Marshal(sampleTask())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"category":null`, `"risk_analysis":null`, `"risk_mitigation":null`, `"token_usage":0`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded task %s missing %s", data, key)
		}
	}
}

func TestDecodeLegacyRecordWithoutAIFields(t *testing.T) {
	legacy := `{"id":3,"title":"Old","description":"d","priority":"alta","effort_hours":1,"status":"pendiente","assigned_to":"Ana"}`
	var task Task
	if err := json.Unmarshal([]byte(legacy), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.Category != nil || task.RiskAnalysis != nil || task.RiskMitigation != nil {
		t.Errorf("AI fields = %v %v %v, want all nil", task.Category, task.RiskAnalysis, task.RiskMitigation)
	}
	if task.TokenUsage != 0 {
		t.Errorf("TokenUsage = %d, want 0", task.TokenUsage)
	}
}

func TestDerivedQueries(t *testing.T) {
	task := sampleTask()
	if task.IsAIEnhanced() {
		t.Error("IsAIEnhanced() = true for plain task")
	}
	task.RiskAnalysis = StringPtr("risk")
	if !task.IsAIEnhanced() {
		t.Error("IsAIEnhanced() = false with risk analysis")
	}
	if task.HasRiskAnalysis() {
		t.Error("HasRiskAnalysis() = true without mitigation")
	}
	task.RiskMitigation = StringPtr("plan")
	want := AISummary{RiskAnalysis: true, RiskMitigation: true, AIEnhanced: true, RiskComplete: true}
	if got := task.AIFieldsSummary(); got != want {
		t.Errorf("AIFieldsSummary() = %+v, want %+v", got, want)
	}
}

func TestCloneForAI(t *testing.T) {
	task := sampleTask()
	task.Category = StringPtr("Testing")
	c := task.CloneForAI("description", "category", "unknown")
	if c.Description != "" || c.Category != nil {
		t.Errorf("CloneForAI kept excluded fields: %+v", c)
	}
	if task.Description == "" || task.Category == nil {
		t.Error("CloneForAI modified the original")
	}

	deep := task.Clone()
	*deep.Category = "Frontend"
	if *task.Category != "Testing" {
		t.Errorf("Clone shares category pointer, original now %q", *task.Category)
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	task := Task{Title: "T1", Priority: "alta", EffortHours: 2, Status: "pendiente", AssignedTo: "Ana", Category: StringPtr("backend")}
	task.Normalize()
	if task.Priority != PriorityHigh || task.Status != StatusPending || *task.Category != "Backend" {
		t.Errorf("Normalize() = %+v", task)
	}
	if err := task.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	free := Task{Title: "T2", Priority: PriorityLow, EffortHours: 1, Status: StatusDone, AssignedTo: "Ana", Category: StringPtr("Marketing")}
	free.Normalize()
	if err := free.Validate(); err != nil || *free.Category != "Marketing" {
		t.Errorf("free-form category: Validate() = %v, category = %q", err, *free.Category)
	}

	blank := Task{Title: "T3", Priority: PriorityLow, EffortHours: 1, Status: StatusDone, AssignedTo: "Ana", Category: StringPtr("  ")}
	blank.Normalize()
	if blank.Category != nil {
		t.Errorf("blank category not cleared: %q", *blank.Category)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Task)
		field  string
	}{
		{"blank title", func(t *Task) { t.Title = "   " }, "title"},
		{"long title", func(t *Task) { t.Title = strings.Repeat("x", 101) }, "title"},
		{"bad priority", func(t *Task) { t.Priority = "urgent" }, "priority"},
		{"bad status", func(t *Task) { t.Status = "blocked" }, "status"},
		{"zero effort", func(t *Task) { t.EffortHours = 0 }, "effort_hours"},
		{"nan effort", func(t *Task) { t.EffortHours = math.NaN() }, "effort_hours"},
		{"no assignee", func(t *Task) { t.AssignedTo = "" }, "assigned_to"},
		{"long category", func(t *Task) { t.Category = StringPtr(strings.Repeat("c", 51)) }, "category"},
		{"blank risk", func(t *Task) { t.RiskAnalysis = StringPtr(" ") }, "risk_analysis"},
		{"blank mitigation", func(t *Task) { t.RiskMitigation = StringPtr("") }, "risk_mitigation"},
		{"negative tokens", func(t *Task) { t.TokenUsage = -1 }, "token_usage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := sampleTask()
			tt.mutate(&task)
			err := task.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), &RemoteError{Operation: "describe", Message: "rate limited"})
	if !IsRemote(wrapped) {
		t.Error("IsRemote() = false for wrapped RemoteError")
	}
	if IsParse(wrapped) || IsValidation(wrapped) {
		t.Error("unexpected match for other kinds")
	}
	pe := &ParseError{What: "effort_hours", Input: "a lot", Err: errors.New("invalid syntax")}
	if !strings.Contains(pe.Error(), `"a lot"`) {
		t.Errorf("ParseError.Error() = %q, want input quoted", pe.Error())
	}
	if (&RemoteError{Message: "rate limited"}).Error() != "rate limited" {
		t.Error("RemoteError must pass the provider message through")
	}
}
