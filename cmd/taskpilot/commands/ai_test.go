package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/taskpilot/internal/audit"
	"github.com/marcus/taskpilot/internal/db"
	"github.com/marcus/taskpilot/internal/stats"
	"github.com/marcus/taskpilot/internal/tasks"
)

func fakeCompletions(t *testing.T, content string, totalTokens int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		body := map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": totalTokens - 2, "completion_tokens": 2, "total_tokens": totalTokens},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAICategorizeCommand(t *testing.T) {
	dir := t.TempDir()
	srv := fakeCompletions(t, "backend", 12)
	cfgPath := writeTestConfig(t, dir, "ai:\n  api_key: test-key\n  base_url: "+srv.URL+"/v1\n")

	if _, err := runCommand(t, "task", "add", "-c", cfgPath, "--title", "Add login", "--assigned-to", "ana"); err != nil {
		t.Fatalf("task add: %v", err)
	}

	out, err := runCommand(t, "ai", "categorize", "1", "-c", cfgPath, "-o", "json")
	if err != nil {
		t.Fatalf("ai categorize: %v", err)
	}
	var got tasks.Task
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if tasks.Value(got.Category) != "Backend" || got.TokenUsage != 12 {
		t.Errorf("categorized task = category %q tokens %d", tasks.Value(got.Category), got.TokenUsage)
	}

	database, err := db.Open(filepath.Join(dir, "taskpilot.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = database.Close() }()
	usage, err := stats.NewLedger(database).TaskUsage(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if usage.Calls != 1 || usage.TotalTokens != 12 {
		t.Errorf("ledger usage = %+v", usage)
	}

	events, err := audit.Recent(filepath.Join(dir, "audit"), audit.Query{TaskID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("audit events = %+v, want start, call and complete", events)
	}
	if events[2].EventType != audit.EventOperationComplete || events[2].Tokens != 12 {
		t.Errorf("final audit event = %+v", events[2])
	}
	if time.Since(events[0].Timestamp) > time.Minute {
		t.Errorf("audit timestamp = %v", events[0].Timestamp)
	}
}
