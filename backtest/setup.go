package backtest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/aitrader/config"
	"github.com/rustyeddy/aitrader/decision"
	"github.com/rustyeddy/aitrader/gateway"
	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/llm"
	"github.com/rustyeddy/aitrader/market"
)

// Setup is a runner and its models, wired from a configuration.
type Setup struct {
	Runner *Runner
	Models []Model
	JSONL  *journal.JSONL
	SQLite *journal.SQLite
}

// Close closes the journals.
func (s *Setup) Close() error {
	if s.Runner == nil || s.Runner.Journal == nil {
		return nil
	}
	return s.Runner.Journal.Close()
}

// FromConfig loads the price book, opens the journals and builds one model
// per enabled entry. cfg is expected to be validated.
func FromConfig(cfg *config.Config, log *zap.Logger) (*Setup, error) {
	if log == nil {
		log = zap.NewNop()
	}

	book, err := market.LoadPriceBook(cfg.Market.Prices)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	log.Info("price book loaded", zap.Int("days", len(book.Days())), zap.Strings("symbols", book.Symbols()))

	models, err := Models(cfg)
	if err != nil {
		return nil, err
	}

	jl, err := journal.NewJSONL(cfg.Journal.Dir)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	s := &Setup{JSONL: jl, Models: models}
	var j journal.Journal = jl
	if cfg.Journal.SQLitePath != "" {
		sq, err := journal.NewSQLite(cfg.Journal.SQLitePath)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open sqlite journal: %w", err), jl.Close())
		}
		s.SQLite = sq
		j = journal.Tee(jl, sq)
	}

	var src gateway.ContextSource
	if jc := cfg.Gateway.Jina; jc.Enabled {
		jr := gateway.NewJinaReader(jc.BaseURL, jc.APIKey())
		log.Info("context lookups enabled", zap.Bool("hosted", jr.Hosted()))
		src = jr
	}
	gw := gateway.NewLimited(
		gateway.NewLocal(book, src),
		gateway.NewLimiter(cfg.Gateway.RatePerMinute, cfg.Gateway.Burst),
		cfg.Gateway.CallTimeoutDuration(),
	)

	s.Runner = &Runner{
		Book:    book,
		Journal: j,
		Reader:  jl,
		Symbols: cfg.Market.Symbols,
		Engine: &decision.Engine{
			Gateway: gw,
			Retry:   cfg.Gateway.Retry.Policy(),
			Logger:  log,
		},
		Parallelism: cfg.Run.Parallelism,
		DayTimeout:  cfg.Run.DayTimeoutDuration(),
		Logger:      log,
	}
	return s, nil
}

// Models builds the enabled model runs of cfg.
func Models(cfg *config.Config) ([]Model, error) {
	var out []Model
	for _, mc := range cfg.Models {
		if !mc.IsEnabled() {
			continue
		}
		r, err := mc.DateRange.Range()
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", mc.Signature, err)
		}
		capability, err := NewCapability(mc.Decision)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", mc.Signature, err)
		}
		out = append(out, Model{
			Signature:   mc.Signature,
			InitialCash: mc.InitialCash,
			MaxSteps:    mc.MaxStepsPerDay,
			Range:       r,
			Capability:  capability,

			ProposeTimeout: mc.Decision.TimeoutDuration(),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no enabled models")
	}
	return out, nil
}

// NewCapability returns the decision capability named by d.Type.
func NewCapability(d config.DecisionConfig) (decision.Capability, error) {
	switch d.Type {
	case config.DecisionOpenAI:
		return llm.New(d.Model, d.APIKey(),
			llm.WithBaseURL(d.BaseURL),
			llm.WithTimeout(d.TimeoutDuration()),
			llm.WithTemperature(d.Temperature),
		), nil
	case config.DecisionHold:
		return decision.Hold{}, nil
	case config.DecisionBuyAndHold:
		return decision.BuyAndHold{Symbol: d.Symbol, Fraction: d.Fraction}, nil
	default:
		return nil, fmt.Errorf("unknown decision type %q", d.Type)
	}
}
