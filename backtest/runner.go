// Package backtest runs every configured model over its trading days and
// collects the resulting metrics.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/aitrader/decision"
	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/market"
	"github.com/rustyeddy/aitrader/pkg/id"
)

// ErrGatewayUnavailable is returned when every day attempted by every model
// ended on a failing gateway.
var ErrGatewayUnavailable = errors.New("backtest: gateway unavailable")

// Model is one model run: a signature, its capital and calendar, and the
// capability that decides for it.
type Model struct {
	Signature   string
	InitialCash float64
	MaxSteps    int
	Range       market.Range
	Capability  decision.Capability

	// ProposeTimeout bounds each call to Capability; 0 keeps the engine's.
	ProposeTimeout time.Duration
}

// Runner drives models through the decision engine and into their ledgers.
type Runner struct {
	Book    *market.PriceBook
	Engine  *decision.Engine
	Journal journal.Journal

	// Reader, when set, is used to resume models that already have
	// snapshots in the journal.
	Reader journal.Reader

	// Symbols is the tradable universe. Empty means every symbol in Book.
	Symbols []string

	// Parallelism bounds the number of models running at once; 0 runs all.
	Parallelism int

	// DayTimeout bounds one model's trading day, including a day still in
	// flight when the run is cancelled.
	DayTimeout time.Duration

	Logger *zap.Logger
	RunID  string
}

// Result summarises one model run.
type Result struct {
	Signature string
	Metrics   journal.MetricsRecord
	Final     journal.Snapshot
	History   []journal.Snapshot

	Days     int // days simulated by this run
	Resumed  int // days already in the journal
	Skipped  int // days without market data
	AutoHeld int
	Erred    int
	Rejected int

	// Unavailable counts erred days caused by gateway failures.
	Unavailable int

	Err error
}

func (r *Runner) validate(models []Model) error {
	if r.Book == nil {
		return fmt.Errorf("backtest: Book is required")
	}
	if r.Engine == nil {
		return fmt.Errorf("backtest: Engine is required")
	}
	if r.Journal == nil {
		return fmt.Errorf("backtest: Journal is required")
	}
	if len(models) == 0 {
		return fmt.Errorf("backtest: no models to run")
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m.Signature == "" {
			return fmt.Errorf("backtest: model signature is required")
		}
		if seen[m.Signature] {
			return fmt.Errorf("backtest: duplicate model %q", m.Signature)
		}
		seen[m.Signature] = true
		if m.Capability == nil {
			return fmt.Errorf("backtest: model %s has no capability", m.Signature)
		}
		if err := m.Range.Validate(); err != nil {
			return fmt.Errorf("backtest: model %s: %w", m.Signature, err)
		}
	}
	return nil
}

// Run simulates every model and returns one result per model, in order.
//
// Models are isolated from each other: a failure ends only the model it
// happened in and is reported in its Result. The returned error joins those
// failures, or is ErrGatewayUnavailable when no model could complete a
// single day. Cancelling ctx stops each model before its next day.
func (r *Runner) Run(ctx context.Context, models []Model) ([]Result, error) {
	if err := r.validate(models); err != nil {
		return nil, err
	}
	if r.RunID == "" {
		r.RunID = id.Run()
	}
	log := r.logger().With(zap.String("run_id", r.RunID))

	symbols := r.Symbols
	if len(symbols) == 0 {
		symbols = r.Book.Symbols()
	}

	limit := r.Parallelism
	if limit <= 0 || limit > len(models) {
		limit = len(models)
	}

	results := make([]Result, len(models))
	var g errgroup.Group
	g.SetLimit(limit)

	log.Info("run started", zap.Int("models", len(models)), zap.Int("parallelism", limit))
	for i := range models {
		m := &modelRun{
			runner:  r,
			model:   models[i],
			symbols: symbols,
			log:     log.With(zap.String("model", models[i].Signature)),
		}
		g.Go(func() error {
			results[i] = m.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var (
		errs                   []error
		attempted, unavailable int
	)
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("model %s: %w", res.Signature, res.Err))
		}
		attempted += res.Days
		unavailable += res.Unavailable
	}
	if attempted > 0 && unavailable == attempted {
		errs = append(errs, ErrGatewayUnavailable)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	log.Info("run finished", zap.Int("days", attempted), zap.Int("errors", len(errs)))
	return results, errors.Join(errs...)
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
