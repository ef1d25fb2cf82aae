package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spotrisk/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for the risk engine.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  spotrisk config init --output config.yaml
  spotrisk config validate --file config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "config.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  spotrisk run --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Mode: %s\n", mode(cfg.IsLiveMode))
	fmt.Printf("  Symbols: %v (tick %s)\n", cfg.Engine.Symbols, cfg.Engine.TickInterval)
	fmt.Printf("  Daily loss limit: %.1f%%, survival floor: $%.2f\n",
		cfg.Risk.MaxDailyLossPct, cfg.Risk.SurvivalFloorUSD)
	fmt.Printf("  Journal: %s\n", cfg.Journal.Backend)
	return nil
}

func mode(live bool) string {
	if live {
		return "live"
	}
	return "paper"
}
