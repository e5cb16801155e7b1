package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/aitrader/backtest"
	"github.com/rustyeddy/aitrader/config"
	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/pkg/id"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Recompute performance metrics from the journal",
	Long: `Recompute each enabled model's metrics from its persisted position
snapshots, without running any decisions.

Examples:
  trader metrics -f run.yaml
  trader metrics -f run.yaml --org
  trader metrics -f run.yaml --record`,
	RunE: runMetrics,
}

var (
	metricsConfigPath string
	metricsOrg        bool
	metricsRecord     bool
)

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVarP(&metricsConfigPath, "file", "f", "", "path to config file (required)")
	metricsCmd.Flags().BoolVar(&metricsOrg, "org", false, "print Org-mode instead of the plain report")
	metricsCmd.Flags().BoolVar(&metricsRecord, "record", false, "append the recomputed records to the journal")
	metricsCmd.MarkFlagRequired("file")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(metricsConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	jl, err := journal.NewJSONL(cfg.Journal.Dir)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jl.Close()

	out := cmd.OutOrStdout()
	runID := id.Run()
	var recs []journal.MetricsRecord
	for _, m := range cfg.Models {
		if !m.IsEnabled() {
			continue
		}
		snaps, err := jl.Snapshots(m.Signature)
		if err != nil {
			return fmt.Errorf("read snapshots %s: %w", m.Signature, err)
		}
		if len(snaps) == 0 {
			fmt.Fprintf(out, "%s: no snapshots in %s\n", m.Signature, jl.SignatureDir(m.Signature))
			continue
		}
		trades, err := jl.Trades(m.Signature)
		if err != nil {
			return fmt.Errorf("read trades %s: %w", m.Signature, err)
		}

		rec := journal.NewMetricsRecord(runID, m.Signature, m.InitialCash, snaps)
		rec.Trades = len(trades)
		if metricsRecord {
			if err := jl.RecordMetrics(rec); err != nil {
				return fmt.Errorf("record metrics %s: %w", m.Signature, err)
			}
		}
		recs = append(recs, rec)

		if metricsOrg {
			fmt.Fprintln(out, journal.FormatMetricsOrg(rec))
		} else {
			backtest.PrintMetrics(out, rec)
		}
	}

	if len(recs) > 1 && !metricsOrg {
		backtest.PrintSummary(out, recs)
	}
	return nil
}
