package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/taskpilot/internal/providers"
)

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":5000", Mode: "release"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		AI:      AIConfig{Model: providers.DefaultModel, Timeout: time.Minute},
		Backup:  BackupConfig{Keep: 3},
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"bad server mode", func(c *Config) { c.Server.Mode = "prod" }, ErrInvalidServerMode},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"negative timeout", func(c *Config) { c.AI.Timeout = -time.Second }, ErrInvalidTimeout},
		{"unknown operation", func(c *Config) {
			c.AI.Operations = map[string]OperationConfig{"translate": {}}
		}, ErrUnknownOperation},
		{"hot temperature", func(c *Config) {
			c.AI.Operations = map[string]OperationConfig{"describe": {Temperature: floatPtr(2.5)}}
		}, ErrInvalidTemperature},
		{"negative max tokens", func(c *Config) {
			c.AI.Operations = map[string]OperationConfig{"audit": {MaxTokens: -1}}
		}, ErrInvalidMaxTokens},
		{"bad cron", func(c *Config) { c.Backup.Schedule = "every night" }, ErrInvalidBackupSchedule},
		{"good cron", func(c *Config) { c.Backup.Schedule = "0 2 * * *" }, nil},
		{"negative keep", func(c *Config) { c.Backup.Keep = -1 }, ErrInvalidBackupKeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := validConfig()
	if err := RequireAPIKey(cfg); err != ErrMissingAPIKey {
		t.Errorf("RequireAPIKey() = %v, want ErrMissingAPIKey", err)
	}
	cfg.AI.APIKey = "sk-test"
	if err := RequireAPIKey(cfg); err != nil {
		t.Errorf("RequireAPIKey() = %v, want nil", err)
	}
}

func TestLoadFromPaths_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	tmpDir := t.TempDir()

	cfg, err := LoadFromPaths(tmpDir, filepath.Join(tmpDir, "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}

	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultServerAddr)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, DefaultLogLevel)
	}
	if cfg.AI.Model != providers.DefaultModel {
		t.Errorf("AI.Model = %q, want %q", cfg.AI.Model, providers.DefaultModel)
	}
	if cfg.AI.Timeout != DefaultAITimeout {
		t.Errorf("AI.Timeout = %v, want %v", cfg.AI.Timeout, DefaultAITimeout)
	}
	if cfg.Backup.Keep != DefaultBackupKeep {
		t.Errorf("Backup.Keep = %d, want %d", cfg.Backup.Keep, DefaultBackupKeep)
	}
	if !strings.HasSuffix(cfg.Store.Path, filepath.Join("taskpilot", "tasks.json")) {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if !strings.HasSuffix(cfg.Audit.Dir, filepath.Join("taskpilot", "audit")) {
		t.Errorf("Audit.Dir = %q", cfg.Audit.Dir)
	}
}

func TestLoadFromPaths_WithYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
server:
  addr: ":8080"
logging:
  level: debug
ai:
  model: gpt-4o
  timeout: 15s
  operations:
    categorize:
      temperature: 0
      max_tokens: 20
backup:
  schedule: "0 3 * * *"
`
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPaths(tmpDir, filepath.Join(tmpDir, "nonexistent", "global.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Errorf("AI.Timeout = %v, want 15s", cfg.AI.Timeout)
	}
	if cfg.Backup.Schedule != "0 3 * * *" {
		t.Errorf("Backup.Schedule = %q", cfg.Backup.Schedule)
	}

	pc := cfg.Providers()
	if pc.Model != "gpt-4o" {
		t.Errorf("Providers().Model = %q, want gpt-4o", pc.Model)
	}
	params := pc.ParamsFor(providers.OpCategorize)
	if params.Temperature != 0 || params.MaxTokens != 20 {
		t.Errorf("categorize params = %v/%d, want 0/20", params.Temperature, params.MaxTokens)
	}
}

func TestLoadFromPaths_MergeConfigs(t *testing.T) {
	tmpDir := t.TempDir()

	globalDir := filepath.Join(tmpDir, "global")
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatal(err)
	}
	globalConfig := filepath.Join(globalDir, "config.yaml")
	globalContent := `
server:
  addr: ":7000"
logging:
  level: info
  format: text
`
	if err := os.WriteFile(globalConfig, []byte(globalContent), 0644); err != nil {
		t.Fatal(err)
	}

	projectDir := filepath.Join(tmpDir, "project")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}
	projectContent := `
logging:
  level: debug
`
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigName), []byte(projectContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPaths(projectDir, globalConfig)
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (project override)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text (from global)", cfg.Logging.Format)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want :7000 (from global)", cfg.Server.Addr)
	}
}

func TestLoadFromPaths_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte("logging:\n  level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFromPaths(tmpDir, filepath.Join(tmpDir, "none.yaml"))
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("LoadFromPaths error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("TASKPILOT_AI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-from-openai-env")
	t.Setenv("TASKPILOT_SERVER_ADDR", ":9999")

	cfg, err := LoadFromPaths(tmpDir, filepath.Join(tmpDir, "none.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}
	if cfg.AI.APIKey != "sk-from-openai-env" {
		t.Errorf("AI.APIKey = %q, want value from OPENAI_API_KEY", cfg.AI.APIKey)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.MaskedAPIKey() != strings.Repeat("*", len("sk-from-openai-env")-4)+"-env" {
		t.Errorf("MaskedAPIKey() = %q", cfg.MaskedAPIKey())
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) should fail")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Error("second WriteDefault() without force should fail")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("WriteDefault(force) error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != DefaultServerAddr || cfg.AI.Timeout != DefaultAITimeout {
		t.Errorf("reloaded defaults = %+v", cfg)
	}
}

func TestMaskedAPIKey(t *testing.T) {
	tests := []struct{ key, want string }{
		{"", ""},
		{"abc", "***"},
		{"sk-123456", "*****3456"},
	}
	for _, tt := range tests {
		c := &Config{AI: AIConfig{APIKey: tt.key}}
		if got := c.MaskedAPIKey(); got != tt.want {
			t.Errorf("MaskedAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct{ in, want string }{
		{"~/data/tasks.json", filepath.Join(home, "data", "tasks.json")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoggingConfig(t *testing.T) {
	c := &Config{Logging: LoggingConfig{Level: "warn", Path: "/tmp/x", Format: "text", RetentionDays: 3}}
	lc := c.LoggingConfig()
	if lc.Level != "warn" || lc.Path != "/tmp/x" || lc.Format != "text" || lc.RetentionDays != 3 {
		t.Errorf("LoggingConfig() = %+v", lc)
	}
}
