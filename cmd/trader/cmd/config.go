package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/aitrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage run configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o run.yaml
  trader config validate -f run.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  trader config init -o run.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  trader config validate -f run.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "run.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  trader run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Prices: %s\n", cfg.Market.Prices)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Dir)
	for _, m := range cfg.Models {
		state := "enabled"
		if !m.IsEnabled() {
			state = "disabled"
		}
		fmt.Fprintf(out, "  Model: %s (%s, $%.2f, %s..%s, %s)\n",
			m.Signature, m.Decision.Type, m.InitialCash, m.DateRange.Start, m.DateRange.End, state)
	}
	return nil
}
