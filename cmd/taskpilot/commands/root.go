// Package commands implements the taskpilot CLI commands using cobra.
package commands

import (
	"fmt"
	"os"

	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "taskpilot",
	Short: "Task tracking with AI-generated descriptions, categories and estimates",
	Long: `taskpilot tracks tasks in a JSON file and uses a chat-completion model
to describe, categorize, estimate and risk-audit them.

Run "taskpilot serve" for the HTTP API, or use the task and ai commands
directly. Configure it in taskpilot.yaml or ~/.config/taskpilot/config.yaml.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Get().Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./taskpilot.yaml, then ~/.config/taskpilot/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
}

var loadedConfig *config.Config

// loadConfig loads configuration once per process, honoring --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if loadedConfig != nil {
		return loadedConfig, nil
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	loadedConfig = cfg
	return cfg, nil
}

// initLogging sets up the global logger. Commands that must run without a
// valid config (config init, help) fall back to stderr logging.
func initLogging(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := loadConfig(cmd)
	if err != nil {
		if cmd.Annotations["config"] == "optional" {
			return nil
		}
		return err
	}

	lc := cfg.LoggingConfig()
	if verbose {
		lc.Level = "debug"
		lc.Console = true
	}
	return logging.Init(lc)
}
