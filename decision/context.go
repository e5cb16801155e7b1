package decision

import (
	"sort"

	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/ledger"
	"github.com/rustyeddy/aitrader/market"
)

// State of a day's decision loop.
type State string

const (
	Gathering State = "gathering"
	Deciding  State = "deciding"
	Done      State = "done"
	Erred     State = "erred"
)

// Tool names a capability may call.
const (
	ToolQueryPrice    = "query_price"
	ToolQueryContext  = "query_context"
	ToolQueryPosition = "query_position"
)

// Tools lists every tool with a one-line description, for prompts.
var Tools = []struct{ Name, Args, Description string }{
	{ToolQueryPrice, `{"symbol": "AAPL"}`, "quoted price of a symbol on the current trading day"},
	{ToolQueryContext, `{"query": "..."}`, "free-text market news and context lookup"},
	{ToolQueryPosition, `{}`, "current cash and holdings"},
}

// ToolCall is a request from the capability to the engine.
type ToolCall struct {
	ID        string            `json:"id"`
	Tool      string            `json:"tool"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// ToolResult is the engine's answer to a ToolCall. Error is set instead of
// Output when the call could not be answered but the day can continue.
type ToolResult struct {
	Call   ToolCall `json:"call"`
	Output string   `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Proposal is what a capability returns for one step: a tool call, a final
// action, or neither. An empty proposal still consumes the step.
type Proposal struct {
	ToolCall  *ToolCall
	Action    *ledger.Action
	Reasoning string
}

// Call builds a tool-call proposal.
func Call(tool string, args map[string]string) Proposal {
	return Proposal{ToolCall: &ToolCall{Tool: tool, Arguments: args}}
}

// Act builds an action proposal.
func Act(a ledger.Action) Proposal {
	return Proposal{Action: &a}
}

// Context is everything a capability sees on one trading day. The engine
// owns it; capabilities must treat it as read-only.
type Context struct {
	Signature string
	Day       market.Day
	Step      int
	MaxSteps  int

	// Symbols is the tradable universe; Prices holds the day's quotes
	// fetched before the first step.
	Symbols   []string
	Prices    map[string]float64
	Portfolio journal.Snapshot

	Results []ToolResult
}

// Price returns the preamble quote for symbol.
func (c *Context) Price(symbol string) (float64, bool) {
	p, ok := c.Prices[symbol]
	return p, ok
}

// LastResult is the most recent tool result, or nil.
func (c *Context) LastResult() *ToolResult {
	if len(c.Results) == 0 {
		return nil
	}
	return &c.Results[len(c.Results)-1]
}

// StepsLeft counts the steps remaining after the current one.
func (c *Context) StepsLeft() int {
	return c.MaxSteps - c.Step
}

// Holdings lists held symbols in sorted order.
func (c *Context) Holdings() []string {
	out := make([]string, 0, len(c.Portfolio.Positions))
	for sym, p := range c.Portfolio.Positions {
		if p.Quantity > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
