package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/aitrader/journal"
)

// Restore resumes the ledger from a durable snapshot history and the trades
// that produced it. It may only be called on a ledger with no history.
func (l *Ledger) Restore(history []journal.Snapshot, trades []journal.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.history) > 0 {
		return errors.New("restore: ledger already has history")
	}
	if len(history) == 0 {
		return nil
	}
	for i, s := range history {
		if s.ModelSignature != l.signature {
			return fmt.Errorf("restore %s: snapshot %d belongs to %s", l.signature, i, s.ModelSignature)
		}
		if i > 0 && !history[i-1].TradingDay.Before(s.TradingDay) {
			return fmt.Errorf("restore %s: %s after %s: %w", l.signature, s.TradingDay, history[i-1].TradingDay, ErrOutOfOrder)
		}
		if err := Verify(s); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	last := history[len(history)-1]
	l.cash = decimal.NewFromFloat(last.Cash)
	l.positions = make(map[string]lot, len(last.Positions))
	for sym, p := range last.Positions {
		l.positions[sym] = lot{qty: decimal.NewFromFloat(p.Quantity), cost: decimal.NewFromFloat(p.AverageCost)}
	}
	l.marks = make(map[string]float64, len(last.Prices))
	for sym, m := range last.Prices {
		l.marks[sym] = m
	}
	for _, s := range history {
		l.history = append(l.history, cloneSnapshot(s))
	}
	for _, t := range trades {
		if !last.TradingDay.Before(t.TradingDay) {
			l.trades = append(l.trades, t)
		}
	}
	return nil
}

// Replay rebuilds a ledger from initialCash and a trade stream, without a
// journal. Each trade is marked at its own price. Trades sharing a day are
// folded into one snapshot for that day.
func Replay(signature string, initialCash float64, trades []journal.TradeRecord) (*Ledger, error) {
	l, err := New(signature, initialCash, nil)
	if err != nil {
		return nil, err
	}

	ordered := append([]journal.TradeRecord(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TradingDay.Before(ordered[j].TradingDay)
	})

	for _, t := range ordered {
		sameDay := l.LastDay() == t.TradingDay
		next, rec, err := l.step(tradeAction(t), t.TradingDay, map[string]float64{t.Symbol: t.Price})
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", t.TradeID, err)
		}
		rec.TradeID = t.TradeID
		l.commit(next, rec, sameDay)
	}
	return l, nil
}

// Settle completes a day whose trade reached the journal but whose snapshot
// did not. The trade is committed as recorded and only the snapshot is
// journaled. prices may be nil, in which case the trade's own price is the
// only mark for the day.
func (l *Ledger) Settle(t journal.TradeRecord, prices map[string]float64) (journal.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.ModelSignature != l.signature {
		return journal.Snapshot{}, fmt.Errorf("settle %s: trade %s belongs to %s", l.signature, t.TradeID, t.ModelSignature)
	}
	if n := len(l.history); n > 0 && !l.history[n-1].TradingDay.Before(t.TradingDay) {
		return journal.Snapshot{}, fmt.Errorf("settle %s on %s after %s: %w", t.TradeID, t.TradingDay, l.history[n-1].TradingDay, ErrOutOfOrder)
	}
	if prices == nil {
		prices = map[string]float64{t.Symbol: t.Price}
	}

	next, _, err := l.step(tradeAction(t), t.TradingDay, prices)
	if err != nil {
		return journal.Snapshot{}, fmt.Errorf("settle %s: %w", t.TradeID, err)
	}
	if l.rec != nil {
		if err := l.rec.RecordSnapshot(next.snapshot); err != nil {
			return journal.Snapshot{}, fmt.Errorf("journal snapshot %s %s: %w", l.signature, t.TradingDay, err)
		}
	}

	l.commit(next, &t, false)
	return cloneSnapshot(next.snapshot), nil
}

func tradeAction(t journal.TradeRecord) Action {
	kind := Buy
	if t.Side == journal.Sell {
		kind = Sell
	}
	return Action{Kind: kind, Symbol: t.Symbol, Quantity: t.Quantity, Price: t.Price, Rationale: t.Rationale}
}
