package journal

import (
	"time"

	"github.com/rustyeddy/aitrader/market"
)

func sampleSnapshot(sig string, day market.Day, cash float64) Snapshot {
	return Snapshot{
		ModelSignature: sig,
		TradingDay:     day,
		Cash:           cash,
		Positions:      map[string]Position{"AAPL": {Symbol: "AAPL", Quantity: 10, AverageCost: 100}},
		Prices:         map[string]float64{"AAPL": 105},
		TotalValue:     cash + 1050,
	}
}

func sampleTrade(id, sig string, day market.Day) TradeRecord {
	return TradeRecord{
		TradeID:        id,
		ModelSignature: sig,
		TradingDay:     day,
		Symbol:         "AAPL",
		Side:           Buy,
		Quantity:       10,
		Price:          100,
		Rationale:      "momentum",
	}
}

func sampleTrace(sig string, day market.Day) []TraceRecord {
	ts := time.Date(2025, 10, 1, 14, 0, 0, 0, time.UTC)
	return []TraceRecord{
		{ModelSignature: sig, TradingDay: day, Step: 0, State: "gathering", Kind: TraceToolCall, ToolCallID: "c1", Tool: "get_price", Arguments: map[string]string{"symbol": "AAPL"}, Time: ts},
		{ModelSignature: sig, TradingDay: day, Step: 0, State: "gathering", Kind: TraceToolResult, ToolCallID: "c1", Response: "100", Attempts: 1, Time: ts},
		{ModelSignature: sig, TradingDay: day, Step: 1, State: "acting", Kind: TraceAction, Action: &ActionTrace{Kind: "buy", Symbol: "AAPL", Quantity: 10, Price: 100}, Time: ts},
	}
}
