package backtest

import (
	"fmt"
	"io"
	"sort"

	"github.com/rustyeddy/aitrader/journal"
)

// PrintMetrics writes the report of one model's metrics record.
func PrintMetrics(w io.Writer, m journal.MetricsRecord) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, " %s\n", m.ModelName)
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", m.RunID)
	fmt.Fprintf(w, "Created:       %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", m.AnalysisPeriod.StartDate)
	fmt.Fprintf(w, "End:           %s\n", m.AnalysisPeriod.EndDate)
	fmt.Fprintf(w, "Trading Days:  %d\n", m.AnalysisPeriod.TotalTradingDays)

	p := m.PerformanceMetrics
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Return:        %.2f%%\n", p.CumulativeReturn*100)
	if p.AnnualizedReturn != nil {
		fmt.Fprintf(w, "Annualized:    %.2f%%\n", *p.AnnualizedReturn*100)
	}
	fmt.Fprintf(w, "Volatility:    %.2f%%\n", p.Volatility*100)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", p.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", p.MaxDrawdown*100)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", p.WinRate*100)
	if p.ProfitLossRatio != nil {
		fmt.Fprintf(w, "P/L Ratio:     %.2f\n", *p.ProfitLossRatio)
	}

	s := m.PortfolioSummary
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Portfolio")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Initial Value: %.2f\n", s.InitialValue)
	fmt.Fprintf(w, "Final Value:   %.2f\n", s.FinalValue)
	fmt.Fprintf(w, "Change:        %.2f (%.2f%%)\n", s.ValueChange, s.ValueChangePercent*100)
	fmt.Fprintf(w, "Trades:        %d\n", m.Trades)

	if m.AutoHeldDays > 0 || m.ErredDays > 0 || m.RejectedActions > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Holds")
		fmt.Fprintln(w, "--------------------------------------------------")
		fmt.Fprintf(w, "Step Budget:   %d\n", m.AutoHeldDays)
		fmt.Fprintf(w, "Erred:         %d\n", m.ErredDays)
		fmt.Fprintf(w, "Rejected:      %d\n", m.RejectedActions)
	}

	fmt.Fprintln(w)
}

// PrintSummary writes one line per model, best cumulative return first.
func PrintSummary(w io.Writer, recs []journal.MetricsRecord) {
	ordered := append([]journal.MetricsRecord(nil), recs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PerformanceMetrics.CumulativeReturn > ordered[j].PerformanceMetrics.CumulativeReturn
	})

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Model Comparison")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "%-20s %6s %10s %9s %8s %9s %7s\n", "Model", "Days", "Final", "Return", "Sharpe", "MaxDD", "Trades")
	for _, m := range ordered {
		p := m.PerformanceMetrics
		fmt.Fprintf(w, "%-20s %6d %10.2f %8.2f%% %8.3f %8.2f%% %7d\n",
			m.ModelName,
			m.AnalysisPeriod.TotalTradingDays,
			m.PortfolioSummary.FinalValue,
			p.CumulativeReturn*100,
			p.SharpeRatio,
			p.MaxDrawdown*100,
			m.Trades,
		)
	}
	fmt.Fprintln(w)
}

// Metrics collects the metrics records of results, skipping models that
// never got as far as computing them.
func Metrics(results []Result) []journal.MetricsRecord {
	out := make([]journal.MetricsRecord, 0, len(results))
	for _, r := range results {
		if r.Metrics.ModelName != "" {
			out = append(out, r.Metrics)
		}
	}
	return out
}
