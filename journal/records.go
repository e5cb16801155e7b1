package journal

import (
	"time"

	"github.com/rustyeddy/aitrader/market"
	"github.com/rustyeddy/aitrader/metrics"
)

// Side of a trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Position is one held symbol. Quantity and AverageCost are never negative.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
}

// Snapshot is a model's valued portfolio at the close of a trading day.
type Snapshot struct {
	ModelSignature string              `json:"model_signature"`
	TradingDay     market.Day          `json:"trading_day"`
	Cash           float64             `json:"cash"`
	Positions      map[string]Position `json:"positions"`
	Prices         map[string]float64  `json:"prices,omitempty"`
	TotalValue     float64             `json:"total_value"`
}

// MarketValue is the sum of quantity × mark over held positions.
func (s Snapshot) MarketValue() float64 {
	var v float64
	for sym, p := range s.Positions {
		v += p.Quantity * s.Prices[sym]
	}
	return v
}

// TradeRecord is an accepted buy or sell. Records are never mutated.
type TradeRecord struct {
	TradeID        string     `json:"trade_id"`
	ModelSignature string     `json:"model_signature"`
	TradingDay     market.Day `json:"trading_day"`
	Symbol         string     `json:"symbol"`
	Side           Side       `json:"side"`
	Quantity       float64    `json:"quantity"`
	Price          float64    `json:"price"`
	Rationale      string     `json:"rationale,omitempty"`
}

// TraceKind classifies one decision-trace event.
type TraceKind string

const (
	TraceToolCall   TraceKind = "tool_call"
	TraceToolResult TraceKind = "tool_result"
	TraceProposal   TraceKind = "proposal"
	TraceAction     TraceKind = "action"
	TraceError      TraceKind = "error"
	TraceAutoHold   TraceKind = "auto_hold"
	TraceRejected   TraceKind = "rejected"
)

// ActionTrace is the action payload recorded in a trace.
type ActionTrace struct {
	Kind     string  `json:"kind"`
	Symbol   string  `json:"symbol,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// TraceRecord is one event of a model's decision loop on one day.
type TraceRecord struct {
	ModelSignature string            `json:"model_signature"`
	TradingDay     market.Day        `json:"trading_day"`
	Step           int               `json:"step"`
	State          string            `json:"state"`
	Kind           TraceKind         `json:"kind"`
	ToolCallID     string            `json:"tool_call_id,omitempty"`
	Tool           string            `json:"tool,omitempty"`
	Arguments      map[string]string `json:"arguments,omitempty"`
	Response       string            `json:"response,omitempty"`
	Reasoning      string            `json:"reasoning,omitempty"`
	Action         *ActionTrace      `json:"action,omitempty"`
	Error          string            `json:"error,omitempty"`
	Attempts       int               `json:"attempts,omitempty"`
	Time           time.Time         `json:"time"`
}

// AnalysisPeriod is the span covered by a metrics record.
type AnalysisPeriod struct {
	StartDate        market.Day `json:"start_date"`
	EndDate          market.Day `json:"end_date"`
	TotalTradingDays int        `json:"total_trading_days"`
}

// PortfolioSummary compares the first and last value of the run.
type PortfolioSummary struct {
	InitialValue       float64 `json:"initial_value"`
	FinalValue         float64 `json:"final_value"`
	ValueChange        float64 `json:"value_change"`
	ValueChangePercent float64 `json:"value_change_percent"`
}

// MetricsRecord is written once per model per run.
type MetricsRecord struct {
	RunID              string              `json:"run_id"`
	ModelName          string              `json:"model_name"`
	AnalysisPeriod     AnalysisPeriod      `json:"analysis_period"`
	PerformanceMetrics metrics.Performance `json:"performance_metrics"`
	PortfolioSummary   PortfolioSummary    `json:"portfolio_summary"`
	Trades             int                 `json:"trades"`
	AutoHeldDays       int                 `json:"auto_held_days"`
	ErredDays          int                 `json:"erred_days"`
	RejectedActions    int                 `json:"rejected_actions"`
	CreatedAt          time.Time           `json:"created_at"`
}

// Values turns a snapshot history into the V_0..V_N series the metrics
// package works on, with V_0 the initial cash.
func Values(initialCash float64, history []Snapshot) []float64 {
	values := make([]float64, 0, len(history)+1)
	values = append(values, initialCash)
	for _, s := range history {
		values = append(values, s.TotalValue)
	}
	return values
}

// NewMetricsRecord derives the record for a model from its initial cash and
// snapshot history.
func NewMetricsRecord(runID, signature string, initialCash float64, history []Snapshot) MetricsRecord {
	values := Values(initialCash, history)

	rec := MetricsRecord{
		RunID:              runID,
		ModelName:          signature,
		PerformanceMetrics: metrics.Compute(values),
		AnalysisPeriod:     AnalysisPeriod{TotalTradingDays: len(history)},
		CreatedAt:          time.Now().UTC(),
	}
	final := values[len(values)-1]
	rec.PortfolioSummary = PortfolioSummary{
		InitialValue: initialCash,
		FinalValue:   final,
		ValueChange:  final - initialCash,
	}
	if initialCash != 0 {
		rec.PortfolioSummary.ValueChangePercent = (final - initialCash) / initialCash
	}
	if len(history) > 0 {
		rec.AnalysisPeriod.StartDate = history[0].TradingDay
		rec.AnalysisPeriod.EndDate = history[len(history)-1].TradingDay
	}
	return rec
}
