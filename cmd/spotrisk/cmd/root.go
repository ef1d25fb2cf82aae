package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spotrisk",
	Short: "A position risk and execution engine for spot markets",
	Long: `Spotrisk manages the risky half of a spot trading system: it sizes
entries by volatility, trails stops behind winners, takes partial and
time-based profits, and halts trading when account-level loss limits
are breached.

It provides tools for:
  - Running the risk engine against a paper exchange
  - Inspecting persisted positions, cash and order history
  - Generating and validating configuration files
  - Journaling every execution to CSV or SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
