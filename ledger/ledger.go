// Package ledger keeps one model's cash and long positions and applies its
// daily actions.
//
// All cash and cost-basis arithmetic is done in decimal so that replaying the
// same trades always reproduces the same state. Values cross the package
// boundary as float64 in journal records.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/market"
	"github.com/rustyeddy/aitrader/pkg/id"
)

// priceTolerance is the relative tolerance between an action's price and the
// day's quote.
const priceTolerance = 1e-9

// valueTolerance is the relative tolerance of the snapshot value invariant.
const valueTolerance = 1e-6

// Recorder receives trades and snapshots before they are committed.
type Recorder interface {
	RecordTrade(journal.TradeRecord) error
	RecordSnapshot(journal.Snapshot) error
}

type lot struct {
	qty  decimal.Decimal
	cost decimal.Decimal // average cost per share
}

// Ledger is the portfolio of one model run. It is safe for concurrent reads
// but a single goroutine is expected to call Apply.
type Ledger struct {
	mu sync.RWMutex

	signature   string
	initialCash float64
	rec         Recorder

	cash      decimal.Decimal
	positions map[string]lot
	marks     map[string]float64

	history []journal.Snapshot
	trades  []journal.TradeRecord
}

// New returns a ledger holding initialCash and no positions. rec may be nil.
func New(signature string, initialCash float64, rec Recorder) (*Ledger, error) {
	if initialCash < 0 || math.IsNaN(initialCash) || math.IsInf(initialCash, 0) {
		return nil, fmt.Errorf("new ledger %s: invalid initial cash %v", signature, initialCash)
	}
	return &Ledger{
		signature:   signature,
		initialCash: initialCash,
		rec:         rec,
		cash:        decimal.NewFromFloat(initialCash),
		positions:   make(map[string]lot),
		marks:       make(map[string]float64),
	}, nil
}

func (l *Ledger) Signature() string    { return l.signature }
func (l *Ledger) InitialCash() float64 { return l.initialCash }

// Apply validates action against the current state and the day's quotes and,
// if valid, journals the resulting trade and snapshot before committing them.
//
// A validation failure returns an error matching ErrRejected and leaves the
// ledger unchanged; the caller applies a hold instead. A journal failure is
// returned as is and also leaves the ledger unchanged.
func (l *Ledger) Apply(ctx context.Context, action Action, day market.Day, prices map[string]float64) (journal.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return journal.Snapshot{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.history); n > 0 && !l.history[n-1].TradingDay.Before(day) {
		return journal.Snapshot{}, fmt.Errorf("apply %s on %s after %s: %w", l.signature, day, l.history[n-1].TradingDay, ErrOutOfOrder)
	}

	next, trade, err := l.step(action, day, prices)
	if err != nil {
		return journal.Snapshot{}, err
	}

	if l.rec != nil {
		if trade != nil {
			if err := l.rec.RecordTrade(*trade); err != nil {
				return journal.Snapshot{}, fmt.Errorf("journal trade %s: %w", trade.TradeID, err)
			}
		}
		if err := l.rec.RecordSnapshot(next.snapshot); err != nil {
			return journal.Snapshot{}, fmt.Errorf("journal snapshot %s %s: %w", l.signature, day, err)
		}
	}

	l.commit(next, trade, false)
	return cloneSnapshot(next.snapshot), nil
}

// state is a candidate ledger state computed by step.
type state struct {
	cash      decimal.Decimal
	positions map[string]lot
	marks     map[string]float64
	snapshot  journal.Snapshot
}

// step computes the state that results from applying action on day without
// touching the ledger.
func (l *Ledger) step(action Action, day market.Day, prices map[string]float64) (state, *journal.TradeRecord, error) {
	next := state{
		cash:      l.cash,
		positions: make(map[string]lot, len(l.positions)+1),
		marks:     make(map[string]float64, len(l.marks)+len(prices)),
	}
	for sym, p := range l.positions {
		next.positions[sym] = p
	}
	for sym, m := range l.marks {
		next.marks[sym] = m
	}
	for sym, p := range prices {
		if p > 0 {
			next.marks[strings.ToUpper(sym)] = p
		}
	}

	var trade *journal.TradeRecord
	if !action.IsHold() {
		a, err := validate(action, day, prices)
		if err != nil {
			return state{}, nil, err
		}
		qty := decimal.NewFromFloat(a.Quantity)
		px := decimal.NewFromFloat(a.Price)
		notional := qty.Mul(px)
		held := next.positions[a.Symbol]

		switch a.Kind {
		case Buy:
			if next.cash.LessThan(notional) {
				return state{}, nil, &InsufficientFundsError{
					Symbol:    a.Symbol,
					Required:  notional.InexactFloat64(),
					Available: next.cash.InexactFloat64(),
				}
			}
			total := held.qty.Add(qty)
			basis := held.qty.Mul(held.cost).Add(notional)
			next.positions[a.Symbol] = lot{qty: total, cost: basis.Div(total)}
			next.cash = next.cash.Sub(notional)

		case Sell:
			if held.qty.LessThan(qty) {
				return state{}, nil, &InsufficientSharesError{
					Symbol:    a.Symbol,
					Requested: a.Quantity,
					Held:      held.qty.InexactFloat64(),
				}
			}
			remaining := held.qty.Sub(qty)
			if remaining.IsZero() {
				delete(next.positions, a.Symbol)
			} else {
				next.positions[a.Symbol] = lot{qty: remaining, cost: held.cost}
			}
			next.cash = next.cash.Add(notional)
		}

		trade = &journal.TradeRecord{
			TradeID:        id.At(day.Time()),
			ModelSignature: l.signature,
			TradingDay:     day,
			Symbol:         a.Symbol,
			Side:           a.side(),
			Quantity:       a.Quantity,
			Price:          a.Price,
			Rationale:      a.Rationale,
		}
	}

	next.snapshot = value(l.signature, day, next.cash, next.positions, next.marks)
	return next, trade, nil
}

func validate(a Action, day market.Day, prices map[string]float64) (Action, error) {
	a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	switch {
	case a.Kind != Buy && a.Kind != Sell:
		return a, &InvalidActionError{Action: a, Reason: "unknown kind"}
	case a.Symbol == "":
		return a, &InvalidActionError{Action: a, Reason: "missing symbol"}
	case !(a.Quantity > 0) || math.IsInf(a.Quantity, 0):
		return a, &InvalidActionError{Action: a, Reason: "quantity must be positive"}
	case !(a.Price > 0) || math.IsInf(a.Price, 0):
		return a, &InvalidActionError{Action: a, Reason: "price must be positive"}
	}

	quoted := quote(prices, a.Symbol)
	if quoted <= 0 || math.Abs(a.Price-quoted) > priceTolerance*quoted {
		return a, &PriceMismatchError{Symbol: a.Symbol, Day: day, Price: a.Price, Quoted: quoted}
	}
	// Trades book at the quoted price.
	a.Price = quoted
	return a, nil
}

func quote(prices map[string]float64, symbol string) float64 {
	if p, ok := prices[symbol]; ok {
		return p
	}
	for sym, p := range prices {
		if strings.EqualFold(sym, symbol) {
			return p
		}
	}
	return 0
}

// value builds the snapshot for a state. Held symbols are marked at the last
// known price, falling back to their average cost if never quoted.
func value(signature string, day market.Day, cash decimal.Decimal, positions map[string]lot, marks map[string]float64) journal.Snapshot {
	snap := journal.Snapshot{
		ModelSignature: signature,
		TradingDay:     day,
		Cash:           cash.InexactFloat64(),
		Positions:      make(map[string]journal.Position, len(positions)),
		Prices:         make(map[string]float64, len(positions)),
	}
	total := cash
	for sym, p := range positions {
		mark, ok := marks[sym]
		if !ok {
			mark = p.cost.InexactFloat64()
		}
		snap.Positions[sym] = journal.Position{
			Symbol:      sym,
			Quantity:    p.qty.InexactFloat64(),
			AverageCost: p.cost.InexactFloat64(),
		}
		snap.Prices[sym] = mark
		total = total.Add(p.qty.Mul(decimal.NewFromFloat(mark)))
	}
	snap.TotalValue = total.InexactFloat64()
	return snap
}

func (l *Ledger) commit(next state, trade *journal.TradeRecord, sameDay bool) {
	l.cash = next.cash
	l.positions = next.positions
	l.marks = next.marks
	if sameDay && len(l.history) > 0 {
		l.history[len(l.history)-1] = next.snapshot
	} else {
		l.history = append(l.history, next.snapshot)
	}
	if trade != nil {
		l.trades = append(l.trades, *trade)
	}
}

// CurrentState returns a copy of the latest state. Before any day is applied
// it is the initial cash with no positions and no trading day.
func (l *Ledger) CurrentState() journal.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n := len(l.history); n > 0 {
		return cloneSnapshot(l.history[n-1])
	}
	return value(l.signature, "", l.cash, l.positions, l.marks)
}

// History returns a copy of every snapshot in trading-day order.
func (l *Ledger) History() []journal.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]journal.Snapshot, len(l.history))
	for i, s := range l.history {
		out[i] = cloneSnapshot(s)
	}
	return out
}

// Trades returns a copy of every accepted trade in order.
func (l *Ledger) Trades() []journal.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]journal.TradeRecord(nil), l.trades...)
}

// LastDay is the trading day of the latest snapshot, or "" if none.
func (l *Ledger) LastDay() market.Day {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n := len(l.history); n > 0 {
		return l.history[n-1].TradingDay
	}
	return ""
}

// Holdings lists held symbols in sorted order.
func (l *Ledger) Holdings() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func cloneSnapshot(s journal.Snapshot) journal.Snapshot {
	out := s
	out.Positions = make(map[string]journal.Position, len(s.Positions))
	for k, v := range s.Positions {
		out.Positions[k] = v
	}
	out.Prices = make(map[string]float64, len(s.Prices))
	for k, v := range s.Prices {
		out.Prices[k] = v
	}
	return out
}

// Verify checks the snapshot invariants: non-negative cash and quantities,
// and total value equal to cash plus marked positions.
func Verify(s journal.Snapshot) error {
	if s.Cash < 0 {
		return fmt.Errorf("%s %s: negative cash %v", s.ModelSignature, s.TradingDay, s.Cash)
	}
	want := s.Cash
	for sym, p := range s.Positions {
		if p.Quantity < 0 || p.AverageCost < 0 {
			return fmt.Errorf("%s %s: negative position %s", s.ModelSignature, s.TradingDay, sym)
		}
		mark, ok := s.Prices[sym]
		if !ok {
			return fmt.Errorf("%s %s: no mark for %s", s.ModelSignature, s.TradingDay, sym)
		}
		want += p.Quantity * mark
	}
	tol := valueTolerance * math.Max(1, math.Abs(want))
	if math.Abs(s.TotalValue-want) > tol {
		return fmt.Errorf("%s %s: total value %v, expected %v", s.ModelSignature, s.TradingDay, s.TotalValue, want)
	}
	return nil
}
