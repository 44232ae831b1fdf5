// Package config handles loading and validating taskpilot configuration.
// Supports YAML config files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/providers"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// File names and environment settings.
const (
	ProjectConfigName = "taskpilot.yaml"
	EnvPrefix         = "TASKPILOT"
)

// Defaults.
const (
	DefaultServerAddr    = ":5000"
	DefaultServerMode    = "release"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultRetentionDays = 7
	DefaultAITimeout     = providers.DefaultTimeout
	DefaultBackupKeep    = 10
)

// Validation errors.
var (
	ErrInvalidServerMode     = errors.New("server.mode must be release, debug or test")
	ErrInvalidLogLevel       = errors.New("logging.level must be debug, info, warn or error")
	ErrInvalidLogFormat      = errors.New("logging.format must be json or text")
	ErrInvalidTimeout        = errors.New("ai.timeout must not be negative")
	ErrUnknownOperation      = errors.New("ai.operations names an unknown operation")
	ErrInvalidTemperature    = errors.New("ai.operations temperature must be between 0 and 2")
	ErrInvalidMaxTokens      = errors.New("ai.operations max_tokens must not be negative")
	ErrInvalidBackupSchedule = errors.New("backup.schedule is not a valid cron expression")
	ErrInvalidBackupKeep     = errors.New("backup.keep must not be negative")
	ErrMissingAPIKey         = errors.New("ai.api_key is not set (configure it or export OPENAI_API_KEY)")
)

// Config holds all taskpilot configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
	AI      AIConfig      `mapstructure:"ai"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Audit   AuditConfig   `mapstructure:"audit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // release, debug, test
}

// StoreConfig locates the task file.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DBConfig locates the usage ledger. An empty path disables it.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// AIConfig configures the completion backend.
type AIConfig struct {
	APIKey     string                     `mapstructure:"api_key"`
	BaseURL    string                     `mapstructure:"base_url"`
	Model      string                     `mapstructure:"model"`
	Timeout    time.Duration              `mapstructure:"timeout"`
	Operations map[string]OperationConfig `mapstructure:"operations"`
}

// OperationConfig overrides one AI operation.
type OperationConfig struct {
	Temperature  *float64 `mapstructure:"temperature"`
	MaxTokens    int      `mapstructure:"max_tokens"`
	SystemPrompt string   `mapstructure:"system_prompt"`
}

// BackupConfig configures scheduled copies of the task file.
type BackupConfig struct {
	Schedule string `mapstructure:"schedule"` // cron expression; empty disables
	Dir      string `mapstructure:"dir"`
	Keep     int    `mapstructure:"keep"`
}

// AuditConfig locates the AI operation audit trail. An empty dir disables it.
type AuditConfig struct {
	Dir string `mapstructure:"dir"`
}

// DataDir returns the directory holding tasks, the ledger and logs.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskpilot")
}

// GlobalConfigPath returns the per-user config file path.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskpilot", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("store.path", filepath.Join(dataDir, "tasks.json"))
	v.SetDefault("db.path", filepath.Join(dataDir, "taskpilot.db"))
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", filepath.Join(dataDir, "logs"))
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.retention_days", DefaultRetentionDays)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", providers.DefaultModel)
	v.SetDefault("ai.timeout", DefaultAITimeout.String())
	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup.keep", DefaultBackupKeep)
	v.SetDefault("audit.dir", filepath.Join(dataDir, "audit"))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "OPENAI_API_KEY")
	return v
}

// Load reads configuration. An explicit path must exist and is the only file
// read; otherwise the global config is read and ./taskpilot.yaml merged over
// it. Environment variables override both.
func Load(explicit string) (*Config, error) {
	if explicit != "" {
		v := newViper()
		v.SetConfigFile(ExpandPath(explicit))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", explicit, err)
		}
		return decode(v)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working dir: %w", err)
	}
	return LoadFromPaths(cwd, GlobalConfigPath())
}

// LoadFromPaths reads globalPath, then merges projectDir/taskpilot.yaml over
// it. Missing files are skipped.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	v := newViper()
	if err := mergeFile(v, globalPath); err != nil {
		return nil, err
	}
	if err := mergeFile(v, filepath.Join(projectDir, ProjectConfigName)); err != nil {
		return nil, err
	}
	return decode(v)
}

func mergeFile(v *viper.Viper, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path is a directory: %s", path)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.DB.Path = ExpandPath(cfg.DB.Path)
	cfg.Logging.Path = ExpandPath(cfg.Logging.Path)
	cfg.Backup.Dir = ExpandPath(cfg.Backup.Dir)
	cfg.Audit.Dir = ExpandPath(cfg.Audit.Dir)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg and returns the first problem as a sentinel error.
func Validate(cfg *Config) error {
	switch cfg.Server.Mode {
	case "", "release", "debug", "test":
	default:
		return ErrInvalidServerMode
	}

	if cfg.Logging.Level != "" && !logging.ValidLevel(cfg.Logging.Level) {
		return ErrInvalidLogLevel
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	if cfg.AI.Timeout < 0 {
		return ErrInvalidTimeout
	}
	for name, op := range cfg.AI.Operations {
		if !providers.Operation(name).Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownOperation, name)
		}
		if op.Temperature != nil && (*op.Temperature < 0 || *op.Temperature > 2) {
			return ErrInvalidTemperature
		}
		if op.MaxTokens < 0 {
			return ErrInvalidMaxTokens
		}
	}

	if cfg.Backup.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Backup.Schedule); err != nil {
			return ErrInvalidBackupSchedule
		}
	}
	if cfg.Backup.Keep < 0 {
		return ErrInvalidBackupKeep
	}
	return nil
}

// RequireAPIKey reports ErrMissingAPIKey when no key is configured.
func RequireAPIKey(cfg *Config) error {
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Providers converts the AI section for the completion client.
func (c *Config) Providers() providers.Config {
	pc := providers.Config{
		APIKey:  c.AI.APIKey,
		BaseURL: c.AI.BaseURL,
		Model:   c.AI.Model,
		Timeout: c.AI.Timeout,
	}
	if len(c.AI.Operations) > 0 {
		pc.Operations = make(map[providers.Operation]providers.OperationConfig, len(c.AI.Operations))
		for name, op := range c.AI.Operations {
			oc := providers.OperationConfig{MaxTokens: op.MaxTokens, SystemPrompt: op.SystemPrompt}
			if op.Temperature != nil {
				t := float32(*op.Temperature)
				oc.Temperature = &t
			}
			pc.Operations[providers.Operation(name)] = oc
		}
	}
	return pc
}

// LoggingConfig converts the logging section.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Path:          c.Logging.Path,
		Format:        c.Logging.Format,
		RetentionDays: c.Logging.RetentionDays,
	}
}

// MaskedAPIKey returns the API key with all but its last four characters
// hidden.
func (c *Config) MaskedAPIKey() string {
	key := c.AI.APIKey
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// WriteDefault writes a config file holding every default to path. It
// refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if force {
		return v.WriteConfigAs(path)
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		return err
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
