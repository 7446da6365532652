package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/safepreview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file and report errors and warnings.

Examples:
  safepreview config validate                      # Validate .safepreview.yml
  safepreview config validate --file prod.yml
  safepreview config validate --strict             # Warnings are errors`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after the config file, SAFEPREVIEW_*
environment variables and defaults have been applied.

Examples:
  safepreview config show
  safepreview config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().StringVar(&configFile, "file", "",
		"Configuration file to validate (default: "+defaultConfigFile+")")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	target := configFile
	if target == "" {
		target = defaultConfigFile
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("configuration file %s does not exist", target)
	}

	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	result := config.ValidateConfigWithDetails(&cfg)
	fmt.Fprintf(out, "Validating %s\n", target)

	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintln(out, "Configuration is valid.")
		return nil
	}

	fmt.Fprint(out, result.String())

	if result.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(result.Errors))
	}
	if configStrict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(result.Warnings))
	}

	fmt.Fprintf(out, "Configuration is valid with %d warnings.\n", len(result.Warnings))

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}
