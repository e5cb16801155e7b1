package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/aitrader/backtest"
	"github.com/rustyeddy/aitrader/config"
	"github.com/rustyeddy/aitrader/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a config file",
	Long: `Run every enabled model over its date range using settings from a
configuration file.

Models that already have snapshots in the journal resume after their last
simulated day. Interrupting the run lets the current day finish, then writes
metrics for what was simulated.

Example:
  trader run -f run.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	setup, err := backtest.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	defer setup.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running %d model(s) with config: %s\n\n", len(setup.Models), runConfigPath)

	results, runErr := setup.Runner.Run(ctx, setup.Models)
	for _, r := range results {
		if r.Metrics.ModelName == "" {
			continue
		}
		backtest.PrintMetrics(out, r.Metrics)
		if r.Err != nil {
			fmt.Fprintf(out, "  stopped early: %v\n\n", r.Err)
		}
	}
	if len(results) > 1 {
		backtest.PrintSummary(out, backtest.Metrics(results))
	}
	fmt.Fprintf(out, "Results saved to: %s\n", setup.JSONL.Dir())
	if cfg.Journal.SQLitePath != "" {
		fmt.Fprintf(out, "                  %s\n", cfg.Journal.SQLitePath)
	}

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		return runErr
	}
	return nil
}
