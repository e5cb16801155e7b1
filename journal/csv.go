package journal

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteTradesCSV exports trades with a header row.
func WriteTradesCSV(w io.Writer, trades []TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trade_id", "model_signature", "trading_day", "symbol", "side", "quantity", "price", "rationale"}); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.TradeID,
			t.ModelSignature,
			t.TradingDay.String(),
			t.Symbol,
			string(t.Side),
			f(t.Quantity),
			f(t.Price),
			t.Rationale,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSnapshotsCSV exports one row per snapshot. Holdings are flattened to
// "SYM:qty" pairs separated by semicolons, sorted by symbol.
func WriteSnapshotsCSV(w io.Writer, snaps []Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"model_signature", "trading_day", "cash", "market_value", "total_value", "positions"}); err != nil {
		return err
	}
	for _, s := range snaps {
		err := cw.Write([]string{
			s.ModelSignature,
			s.TradingDay.String(),
			f(s.Cash),
			f(s.MarketValue()),
			f(s.TotalValue),
			holdings(s.Positions),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func holdings(ps map[string]Position) string {
	syms := make([]string, 0, len(ps))
	for sym := range ps {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	parts := make([]string, 0, len(syms))
	for _, sym := range syms {
		parts = append(parts, sym+":"+strconv.FormatFloat(ps[sym].Quantity, 'f', -1, 64))
	}
	return strings.Join(parts, ";")
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
