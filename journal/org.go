package journal

import (
	"fmt"
	"strings"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts live in the PROPERTIES drawer; the model's rationale becomes the body.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** %s %s %s (%s)", t.TradingDay, strings.ToUpper(string(t.Side)), t.Symbol, shortID(t.TradeID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":MODEL: %s\n", t.ModelSignature))
	b.WriteString(fmt.Sprintf(":TRADING_DAY: %s\n", t.TradingDay))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":QUANTITY: %g\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":PRICE: %.4f\n", t.Price))
	b.WriteString(fmt.Sprintf(":NOTIONAL: %.2f\n", t.Quantity*t.Price))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Rationale\n")
	if t.Rationale == "" {
		b.WriteString("- \n")
	} else {
		b.WriteString(t.Rationale)
		b.WriteString("\n")
	}

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatMetricsOrg renders a metrics record as an Org table.
func FormatMetricsOrg(m MetricsRecord) string {
	p := m.PerformanceMetrics
	opt := func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.4f", *v)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("* %s (%s .. %s)\n", m.ModelName, m.AnalysisPeriod.StartDate, m.AnalysisPeriod.EndDate))
	b.WriteString(fmt.Sprintf("| %-18s | %14s |\n", "metric", "value"))
	b.WriteString("|--------------------+----------------|\n")
	row := func(k, v string) { b.WriteString(fmt.Sprintf("| %-18s | %14s |\n", k, v)) }
	row("trading_days", fmt.Sprintf("%d", p.TradingDays))
	row("initial_value", fmt.Sprintf("%.2f", m.PortfolioSummary.InitialValue))
	row("final_value", fmt.Sprintf("%.2f", m.PortfolioSummary.FinalValue))
	row("cumulative_return", fmt.Sprintf("%.4f", p.CumulativeReturn))
	row("annualized_return", opt(p.AnnualizedReturn))
	row("volatility", fmt.Sprintf("%.4f", p.Volatility))
	row("sharpe_ratio", fmt.Sprintf("%.4f", p.SharpeRatio))
	row("max_drawdown", fmt.Sprintf("%.4f", p.MaxDrawdown))
	row("win_rate", fmt.Sprintf("%.4f", p.WinRate))
	row("profit_loss_ratio", opt(p.ProfitLossRatio))
	row("trades", fmt.Sprintf("%d", m.Trades))
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
