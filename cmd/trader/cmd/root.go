package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A multi-model trading-day simulator",
	Long: `Trader runs several decision models side by side over the same historical
trading days and compares how their portfolios perform.

It provides tools for:
  - Simulating models day by day from a config file
  - Generating and validating configuration files
  - Recomputing performance metrics from the journal
  - Dumping trades and position snapshots

Each model starts with its own cash, decides once per trading day through a
bounded tool-calling loop, and has every trade, snapshot and decision trace
written to an append-only journal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
