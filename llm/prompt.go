package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/aitrader/decision"
)

const systemPrompt = `You are a portfolio manager trading US equities, long only, one trading day at a time.
Each reply must be a single JSON object and nothing else, in one of two forms:

  {"reasoning": "...", "tool": {"name": "<tool>", "arguments": {...}}}
  {"reasoning": "...", "action": {"kind": "buy|sell|hold", "symbol": "AAPL", "quantity": 10}}

Tools:
%s
Rules:
- At most one buy or sell per day. Trades execute at today's quoted price.
- You cannot spend more cash than you have or sell shares you do not hold.
- You have a limited number of steps; when unsure, hold.`

func systemMessage() chatMessage {
	var tools strings.Builder
	for _, t := range decision.Tools {
		fmt.Fprintf(&tools, "- %s %s: %s\n", t.Name, t.Args, t.Description)
	}
	return chatMessage{Role: "system", Content: fmt.Sprintf(systemPrompt, tools.String())}
}

// messages rebuilds the transcript of the day from the decision context.
func messages(dc *decision.Context) []chatMessage {
	msgs := []chatMessage{systemMessage(), {Role: "user", Content: briefing(dc)}}

	for _, r := range dc.Results {
		call, _ := json.Marshal(toolReply{Tool: &toolSpec{Name: r.Call.Tool, Arguments: r.Call.Arguments}})
		msgs = append(msgs, chatMessage{Role: "assistant", Content: string(call)})

		result := r.Output
		if r.Error != "" {
			result = "error: " + r.Error
		}
		msgs = append(msgs, chatMessage{
			Role:    "user",
			Content: fmt.Sprintf("Result of %s: %s\nSteps left: %d", r.Call.Tool, result, dc.StepsLeft()),
		})
	}
	return msgs
}

func briefing(dc *decision.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trading day: %s\n", dc.Day)
	fmt.Fprintf(&b, "Cash: %.2f\n", dc.Portfolio.Cash)

	holdings := dc.Holdings()
	if len(holdings) == 0 {
		b.WriteString("Holdings: none\n")
	} else {
		b.WriteString("Holdings:\n")
		for _, sym := range holdings {
			p := dc.Portfolio.Positions[sym]
			fmt.Fprintf(&b, "- %s: %g shares, average cost %.4f\n", sym, p.Quantity, p.AverageCost)
		}
	}

	syms := make([]string, 0, len(dc.Prices))
	for sym := range dc.Prices {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	b.WriteString("Today's prices:\n")
	for _, sym := range syms {
		fmt.Fprintf(&b, "- %s: %.4f\n", sym, dc.Prices[sym])
	}
	fmt.Fprintf(&b, "Steps left: %d\n", dc.StepsLeft())
	b.WriteString("Decide your next step.")
	return b.String()
}
