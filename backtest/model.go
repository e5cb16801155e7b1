package backtest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/rustyeddy/aitrader/decision"
	"github.com/rustyeddy/aitrader/gateway"
	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/ledger"
	"github.com/rustyeddy/aitrader/market"
	"github.com/rustyeddy/aitrader/retry"
)

// modelRun carries everything one model needs for the length of a run.
type modelRun struct {
	runner  *Runner
	model   Model
	symbols []string
	log     *zap.Logger

	ledger *ledger.Ledger
	res    Result
}

func (m *modelRun) run(ctx context.Context) (res Result) {
	m.res.Signature = m.model.Signature
	defer func() {
		if v := recover(); v != nil {
			m.log.Error("model run panicked", zap.Any("panic", v), zap.String("stack", string(debug.Stack())))
			m.res.Err = &decision.PanicError{Value: v, Stack: string(debug.Stack())}
			res = m.res
		}
	}()

	if err := m.open(); err != nil {
		m.res.Err = err
		return m.res
	}

	m.res.Err = m.days(ctx)

	if err := m.finish(); err != nil && m.res.Err == nil {
		m.res.Err = err
	}
	return m.res
}

// days walks the model's calendar. A panic outside the decision engine ends
// the walk but still lets the run record its metrics.
func (m *modelRun) days(ctx context.Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			pe := &decision.PanicError{Value: v, Stack: string(debug.Stack())}
			m.log.Error("model run panicked", zap.Any("panic", v), zap.String("stack", pe.Stack))
			err = pe
		}
	}()

	for _, day := range m.model.Range.Days() {
		if ctx.Err() != nil {
			m.log.Info("run cancelled, stopping before day", zap.Stringer("day", day))
			return nil
		}
		if last := m.ledger.LastDay(); last != "" && !last.Before(day) {
			m.res.Resumed++
			continue
		}
		if err := m.day(ctx, day); err != nil {
			m.log.Error("model run stopped", zap.Stringer("day", day), zap.Error(err))
			return err
		}
	}
	return nil
}

// open builds the ledger, restoring it from the journal when the model has
// already simulated some days.
func (m *modelRun) open() error {
	l, err := ledger.New(m.model.Signature, m.model.InitialCash, m.runner.Journal)
	if err != nil {
		return err
	}
	m.ledger = l

	rd := m.runner.Reader
	if rd == nil {
		return nil
	}
	snaps, err := rd.Snapshots(m.model.Signature)
	if err != nil {
		return fmt.Errorf("resume %s: %w", m.model.Signature, err)
	}
	trades, err := rd.Trades(m.model.Signature)
	if err != nil {
		return fmt.Errorf("resume %s: %w", m.model.Signature, err)
	}
	if len(snaps) == 0 && len(trades) == 0 {
		return nil
	}
	if err := l.Restore(snaps, trades); err != nil {
		return err
	}
	if err := m.settle(trades); err != nil {
		return fmt.Errorf("resume %s: %w", m.model.Signature, err)
	}
	m.log.Info("resumed from journal", zap.Stringer("last_day", l.LastDay()), zap.Int("snapshots", len(snaps)))
	return nil
}

// settle finishes days whose trade was journaled but whose snapshot was not,
// so they are not decided a second time.
func (m *modelRun) settle(trades []journal.TradeRecord) error {
	for _, t := range trades {
		if last := m.ledger.LastDay(); last != "" && !last.Before(t.TradingDay) {
			continue
		}
		prices, err := m.runner.Book.Prices(t.TradingDay)
		if err != nil {
			prices = nil
		}
		snap, err := m.ledger.Settle(t, prices)
		if err != nil {
			return err
		}
		m.log.Warn("settled journaled trade without snapshot",
			zap.Stringer("day", t.TradingDay),
			zap.String("trade_id", t.TradeID),
			zap.Float64("total_value", snap.TotalValue),
		)
	}
	return nil
}

// day simulates one trading day. Only journal and ledger invariant failures
// are returned; everything else is folded into a hold.
func (m *modelRun) day(ctx context.Context, day market.Day) error {
	prices, err := m.runner.Book.Prices(day)
	if err != nil {
		if market.IsDataUnavailable(err) {
			m.res.Skipped++
			m.log.Warn("no market data, skipping day", zap.Stringer("day", day))
			return nil
		}
		return err
	}

	// The day finishes even if the run is cancelled meanwhile, and its
	// action is applied even when deciding ran out of time.
	applyCtx := context.WithoutCancel(ctx)
	dayCtx := applyCtx
	if m.runner.DayTimeout > 0 {
		var cancel context.CancelFunc
		dayCtx, cancel = context.WithTimeout(dayCtx, m.runner.DayTimeout)
		defer cancel()
	}

	m.res.Days++
	out := m.decide(dayCtx, day)
	trace := out.Trace

	switch {
	case out.AutoHeld:
		m.res.AutoHeld++
	case out.State == decision.Erred:
		m.res.Erred++
		if unavailable(out.Err) {
			m.res.Unavailable++
		}
	}

	// The ledger marks and validates against the full day's quotes.
	snap, err := m.ledger.Apply(applyCtx, out.Action, day, prices)
	if errors.Is(err, ledger.ErrRejected) {
		m.res.Rejected++
		m.log.Warn("action rejected, holding", zap.Stringer("day", day), zap.Stringer("action", out.Action), zap.Error(err))
		trace = append(trace, journal.TraceRecord{
			ModelSignature: m.model.Signature,
			TradingDay:     day,
			Step:           out.Steps,
			State:          string(out.State),
			Kind:           journal.TraceRejected,
			Action:         out.Action.Trace(),
			Error:          err.Error(),
			Time:           m.runner.Engine.Clock(),
		})
		snap, err = m.ledger.Apply(applyCtx, ledger.HoldAction("rejected: "+err.Error()), day, prices)
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", day, err)
	}
	if err := ledger.Verify(snap); err != nil {
		return err
	}

	if len(trace) > 0 {
		if err := m.runner.Journal.RecordTrace(trace); err != nil {
			return fmt.Errorf("journal trace %s: %w", day, err)
		}
	}

	m.log.Debug("day done",
		zap.Stringer("day", day),
		zap.String("state", string(out.State)),
		zap.Int("steps", out.Steps),
		zap.Float64("total_value", snap.TotalValue),
	)
	return nil
}

// decide runs the decision engine, turning a panic anywhere beneath it into
// an erred hold.
func (m *modelRun) decide(ctx context.Context, day market.Day) (out decision.Outcome) {
	defer func() {
		if v := recover(); v != nil {
			pe := &decision.PanicError{Value: v, Stack: string(debug.Stack())}
			m.log.Warn("decision panicked, holding", zap.Stringer("day", day), zap.Error(pe))
			out = decision.Outcome{
				Action: ledger.HoldAction("decision panic"),
				State:  decision.Erred,
				Err:    pe,
				Trace: []journal.TraceRecord{{
					ModelSignature: m.model.Signature,
					TradingDay:     day,
					State:          string(decision.Erred),
					Kind:           journal.TraceError,
					Action:         ledger.HoldAction("").Trace(),
					Error:          pe.Error(),
					Time:           m.runner.Engine.Clock(),
				}},
			}
		}
	}()

	return m.runner.Engine.Run(ctx, m.model.Capability, decision.Input{
		Signature: m.model.Signature,
		Day:       day,
		Symbols:   m.symbols,
		Portfolio: m.ledger.CurrentState(),
		MaxSteps:  m.model.MaxSteps,

		ProposeTimeout: m.model.ProposeTimeout,
	})
}

// finish computes and journals the model's metrics.
func (m *modelRun) finish() error {
	history := m.ledger.History()
	rec := journal.NewMetricsRecord(m.runner.RunID, m.model.Signature, m.model.InitialCash, history)
	rec.Trades = len(m.ledger.Trades())
	rec.AutoHeldDays = m.res.AutoHeld
	rec.ErredDays = m.res.Erred
	rec.RejectedActions = m.res.Rejected

	m.res.Metrics = rec
	m.res.History = history
	m.res.Final = m.ledger.CurrentState()

	if err := m.runner.Journal.RecordMetrics(rec); err != nil {
		return fmt.Errorf("journal metrics: %w", err)
	}
	m.log.Info("model finished",
		zap.Int("days", m.res.Days),
		zap.Int("trades", rec.Trades),
		zap.Float64("final_value", rec.PortfolioSummary.FinalValue),
		zap.Float64("cumulative_return", rec.PerformanceMetrics.CumulativeReturn),
	)
	return nil
}

// unavailable reports whether a day erred because the gateway or the
// capability's endpoint kept failing.
func unavailable(err error) bool {
	var ge *gateway.Error
	var ex *retry.ExhaustedError
	return errors.As(err, &ge) || errors.As(err, &ex)
}
