package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd rappresenta il comando config
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Show or validate the effective configuration: config file, .env and
environment variables merged over the defaults.`,
	Example: `  # Show the effective configuration (secrets masked)
  roundtable config show

  # Validate a specific file
  roundtable config validate -c configs/config.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runConfigValidate,
}

var configShowSecrets bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "Print API keys and passwords in clear")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !configShowSecrets {
		cfg = cfg.Redacted()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# Current Configuration")
	fmt.Fprintln(out, "# =====================")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = "(default search path)"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating configuration: %s\n\n", configPath)

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(out, "✗ Failed to load configuration")
		return err
	}
	fmt.Fprintln(out, "✓ Configuration loaded successfully")

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(out, "✗ Configuration validation failed")
		return err
	}
	fmt.Fprintln(out, "✓ Configuration is valid")

	fmt.Fprintf(out, "\n  Model:         %s @ %s\n", cfg.Model.ID, cfg.Model.BaseURL)
	fmt.Fprintf(out, "  Presets:       %d\n", len(cfg.Models))
	fmt.Fprintf(out, "  Session store: %s\n", cfg.SessionStore.Type)
	fmt.Fprintf(out, "  Characters:    %s\n", cfg.Chat.CharactersFile)
	fmt.Fprintf(out, "  Langfuse:      %t\n", cfg.Langfuse.Enabled)
	return nil
}
