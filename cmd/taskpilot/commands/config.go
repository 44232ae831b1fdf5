package commands

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/marcus/taskpilot/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Long: `Write a config file holding every default setting.

By default the file goes to ~/.config/taskpilot/config.yaml. Use --project to
write ./taskpilot.yaml instead, or --path for any other location.`,
	Annotations: map[string]string{"config": "optional"},
	RunE:        runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the merged configuration after files and environment are applied. The API key is masked.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file locations",
	Annotations: map[string]string{"config": "optional"},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "global:  %s\nproject: %s\n", config.GlobalConfigPath(), config.ProjectConfigName)
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("path", "", "Write the config to this path")
	configInitCmd.Flags().Bool("project", false, "Write ./taskpilot.yaml")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	project, _ := cmd.Flags().GetBool("project")
	force, _ := cmd.Flags().GetBool("force")

	switch {
	case path != "":
	case project:
		path = config.ProjectConfigName
	default:
		path = config.GlobalConfigPath()
	}

	if err := config.WriteDefault(path, force); err != nil {
		return err
	}
	abs, err := filepath.Abs(config.ExpandPath(path))
	if err != nil {
		abs = path
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", abs)
	fmt.Fprintln(cmd.OutOrStdout(), "Set ai.api_key there or export OPENAI_API_KEY before running AI operations.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if format == formatTable {
		format = formatYAML
	}
	return writeStructured(cmd.OutOrStdout(), format, configView(cfg))
}

// configView renders cfg for display with the API key masked.
func configView(cfg *config.Config) map[string]any {
	ops := make(map[string]any, len(cfg.AI.Operations))
	names := make([]string, 0, len(cfg.AI.Operations))
	for name := range cfg.AI.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op := cfg.AI.Operations[name]
		view := map[string]any{}
		if op.Temperature != nil {
			view["temperature"] = *op.Temperature
		}
		if op.MaxTokens > 0 {
			view["max_tokens"] = op.MaxTokens
		}
		if op.SystemPrompt != "" {
			view["system_prompt"] = op.SystemPrompt
		}
		ops[name] = view
	}

	return map[string]any{
		"server": map[string]any{
			"addr": cfg.Server.Addr,
			"mode": cfg.Server.Mode,
		},
		"store": map[string]any{"path": cfg.Store.Path},
		"db":    map[string]any{"path": cfg.DB.Path},
		"logging": map[string]any{
			"level":          cfg.Logging.Level,
			"path":           cfg.Logging.Path,
			"format":         cfg.Logging.Format,
			"retention_days": cfg.Logging.RetentionDays,
		},
		"ai": map[string]any{
			"api_key":    cfg.MaskedAPIKey(),
			"base_url":   cfg.AI.BaseURL,
			"model":      cfg.AI.Model,
			"timeout":    cfg.AI.Timeout.String(),
			"operations": ops,
		},
		"backup": map[string]any{
			"schedule": cfg.Backup.Schedule,
			"dir":      cfg.Backup.Dir,
			"keep":     cfg.Backup.Keep,
		},
		"audit": map[string]any{"dir": cfg.Audit.Dir},
	}
}
