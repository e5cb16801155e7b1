package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/market"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display journal records, from the JSONL directory or the
SQLite mirror.

Subcommands:
  trade     - Get details of a specific trade by ID (SQLite only)
  trades    - List a model's trades
  snapshots - List a model's position snapshots

Examples:
  trader journal trades --signature gpt-4o
  trader journal trades --signature gpt-4o --db journal.sqlite --from 2025-10-01 --to 2025-10-10
  trader journal snapshots --signature gpt-4o --format csv
  trader journal trade --db journal.sqlite <trade-id>`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List a model's trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List a model's position snapshots",
	Args:  cobra.NoArgs,
	RunE:  runJournalSnapshots,
}

var (
	journalDir       string
	journalDBPath    string
	journalSignature string
	journalFormat    string
	journalFrom      string
	journalTo        string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalSnapshotsCmd)

	journalCmd.PersistentFlags().StringVar(&journalDir, "dir", "./data/agent_data", "JSONL journal directory")
	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (overrides --dir)")
	journalCmd.PersistentFlags().StringVarP(&journalSignature, "signature", "s", "", "model signature")
	journalCmd.PersistentFlags().StringVar(&journalFormat, "format", "org", "output format: org or csv")

	journalTradesCmd.Flags().StringVar(&journalFrom, "from", "", "first trading day (SQLite only)")
	journalTradesCmd.Flags().StringVar(&journalTo, "to", "", "last trading day (SQLite only)")
}

func openReader() (journal.Reader, func() error, error) {
	if journalDBPath != "" {
		j, err := journal.NewSQLite(journalDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return j, j.Close, nil
	}
	j, err := journal.NewJSONL(journalDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	return j, j.Close, nil
}

func requireSignature() error {
	if journalSignature == "" {
		return fmt.Errorf("--signature is required")
	}
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	if journalDBPath == "" {
		return fmt.Errorf("trade lookup needs --db")
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	if err := requireSignature(); err != nil {
		return err
	}

	var recs []journal.TradeRecord
	if journalFrom != "" || journalTo != "" {
		if journalDBPath == "" {
			return fmt.Errorf("--from/--to need --db")
		}
		from, to, err := dayBounds(journalFrom, journalTo)
		if err != nil {
			return err
		}
		j, err := journal.NewSQLite(journalDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		if recs, err = j.ListTradesBetween(journalSignature, from, to); err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
	} else {
		rd, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()
		if recs, err = rd.Trades(journalSignature); err != nil {
			return fmt.Errorf("read trades: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	switch journalFormat {
	case "csv":
		return journal.WriteTradesCSV(out, recs)
	case "org":
		fmt.Fprintln(out, journal.FormatTradesOrg(recs))
		return nil
	default:
		return fmt.Errorf("unknown format %q", journalFormat)
	}
}

func runJournalSnapshots(cmd *cobra.Command, args []string) error {
	if err := requireSignature(); err != nil {
		return err
	}
	rd, closeFn, err := openReader()
	if err != nil {
		return err
	}
	defer closeFn()

	snaps, err := rd.Snapshots(journalSignature)
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}

	out := cmd.OutOrStdout()
	switch journalFormat {
	case "csv":
		return journal.WriteSnapshotsCSV(out, snaps)
	case "org":
		fmt.Fprintln(out, "| Day | Cash | Market Value | Total |")
		fmt.Fprintln(out, "|-----+------+--------------+-------|")
		for _, s := range snaps {
			fmt.Fprintf(out, "| %s | %.2f | %.2f | %.2f |\n", s.TradingDay, s.Cash, s.MarketValue(), s.TotalValue)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", journalFormat)
	}
}

// dayBounds parses an inclusive day range; a missing end is the start.
func dayBounds(from, to string) (market.Day, market.Day, error) {
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	start, err := market.ParseDay(from)
	if err != nil {
		return "", "", fmt.Errorf("date: %w", err)
	}
	end, err := market.ParseDay(to)
	if err != nil {
		return "", "", fmt.Errorf("date: %w", err)
	}
	r := market.Range{Start: start, End: end}
	return start, end, r.Validate()
}
