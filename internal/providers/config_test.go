package providers

import (
	"math"
	"testing"
)

func TestParamsFor(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		op       Operation
		wantTemp float32
		wantMax  int
	}{
		{OpDescribe, 0.8, 500},
		{OpCategorize, 0.3, 50},
		{OpEstimate, 0.2, 100},
		{OpAudit, 0.6, 800},
		{OpMitigation, 0.7, 1000},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			p := cfg.ParamsFor(tt.op)
			if p.Temperature != tt.wantTemp || p.MaxTokens != tt.wantMax {
				t.Errorf("ParamsFor(%s) = %v/%d, want %v/%d", tt.op, p.Temperature, p.MaxTokens, tt.wantTemp, tt.wantMax)
			}
			if p.TopP != 1.0 {
				t.Errorf("TopP = %v, want 1.0", p.TopP)
			}
		})
	}
}

func TestParamsForOverride(t *testing.T) {
	temp := float32(0)
	cfg := DefaultConfig()
	cfg.Operations = map[Operation]OperationConfig{
		OpDescribe: {Temperature: &temp, MaxTokens: 42},
	}
	p := cfg.ParamsFor(OpDescribe)
	if p.Temperature != 0 || p.MaxTokens != 42 {
		t.Errorf("ParamsFor(describe) = %v/%d, want 0/42", p.Temperature, p.MaxTokens)
	}
	if cfg.SystemPrompt(OpDescribe) != systemPrompts[OpDescribe] {
		t.Error("empty prompt override should keep the built-in prompt")
	}
}

func TestEveryOperationHasPrompt(t *testing.T) {
	cfg := DefaultConfig()
	for _, op := range Operations() {
		if cfg.SystemPrompt(op) == "" {
			t.Errorf("no system prompt for %s", op)
		}
		if !op.Valid() {
			t.Errorf("%s not valid", op)
		}
	}
	if Operation("translate").Valid() {
		t.Error("unknown operation reported valid")
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		model   string
		in, out int
		want    float64
	}{
		{ModelBalanced, 1000, 1000, 0.00075},
		{ModelFast, 2000, 500, 0.004},
		{ModelQuality, 100, 100, 0.009},
		{"unknown-model", 1000, 1000, 0},
	}
	for _, tt := range tests {
		got := Cost(tt.model, tt.in, tt.out)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cost(%s, %d, %d) = %v, want %v", tt.model, tt.in, tt.out, got, tt.want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	s := StatusOf(DefaultConfig())
	if s.Configured || s.APIKeyPresent {
		t.Errorf("status without key = %+v", s)
	}
	if s.DefaultModel != DefaultModel {
		t.Errorf("DefaultModel = %q", s.DefaultModel)
	}
	if len(s.AvailableModels) != 3 || len(s.OperationsSupported) != 5 {
		t.Errorf("status = %+v", s)
	}

	cfg := DefaultConfig()
	cfg.APIKey = "k"
	cfg.Model = ""
	s = StatusOf(cfg)
	if !s.Configured || s.DefaultModel != DefaultModel {
		t.Errorf("status with key = %+v", s)
	}
}

func TestResultHelpers(t *testing.T) {
	if !Failure("x").Failed() {
		t.Error("Failure().Failed() = false")
	}
	ok := Success("Backend", 12)
	if ok.Failed() || ok.Tokens() != 12 {
		t.Errorf("Success() = %+v", ok)
	}
	if (Result{}).Tokens() != 0 {
		t.Error("empty Result Tokens() != 0")
	}
}
