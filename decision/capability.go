package decision

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/rustyeddy/aitrader/ledger"
	"github.com/rustyeddy/aitrader/market"
)

// Hold never trades.
type Hold struct{}

func (Hold) Propose(context.Context, *Context) (Proposal, error) {
	return Proposal{Action: &ledger.Action{Kind: ledger.Hold}, Reasoning: "hold strategy"}, nil
}

// BuyAndHold invests Fraction of the cash in Symbol on the first day it holds
// nothing, in whole shares, then holds. With an empty Symbol the first
// universe symbol is used.
type BuyAndHold struct {
	Symbol   string
	Fraction float64
}

func (b BuyAndHold) Propose(_ context.Context, c *Context) (Proposal, error) {
	sym := b.Symbol
	if sym == "" && len(c.Symbols) > 0 {
		sym = c.Symbols[0]
	}
	if sym == "" {
		return Act(ledger.HoldAction("no symbol to buy")), nil
	}
	if len(c.Holdings()) > 0 {
		return Act(ledger.HoldAction("already invested")), nil
	}

	price, ok := c.Price(sym)
	if !ok {
		// Ask once; if the gateway had no quote either, give up for today.
		if last := c.LastResult(); last != nil && last.Call.Tool == ToolQueryPrice {
			if last.Error != "" {
				return Act(ledger.HoldAction("no quote for " + sym)), nil
			}
			p, err := strconv.ParseFloat(last.Output, 64)
			if err != nil {
				return Proposal{}, fmt.Errorf("parse price %q: %w", last.Output, err)
			}
			price = p
		} else {
			return Call(ToolQueryPrice, map[string]string{"symbol": sym}), nil
		}
	}

	frac := b.Fraction
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	qty := math.Floor(c.Portfolio.Cash * frac / price)
	if qty < 1 {
		return Act(ledger.HoldAction("cash below one share")), nil
	}
	return Proposal{
		Action:    &ledger.Action{Kind: ledger.Buy, Symbol: sym, Quantity: qty, Price: price},
		Reasoning: fmt.Sprintf("buy and hold %s", sym),
	}, nil
}

// Step is one scripted reply.
type Step struct {
	Proposal Proposal
	Err      error
	Panic    any
}

// Scripted replays fixed steps. Days maps a trading day to its script; other
// days use Default. Step n of a day returns script[n-1]; past the end of the
// script every step is empty.
type Scripted struct {
	Days    map[market.Day][]Step
	Default []Step
}

func (s *Scripted) Propose(_ context.Context, c *Context) (Proposal, error) {
	script, ok := s.Days[c.Day]
	if !ok {
		script = s.Default
	}
	i := c.Step - 1
	if i < 0 || i >= len(script) {
		return Proposal{}, nil
	}
	st := script[i]
	if st.Panic != nil {
		panic(st.Panic)
	}
	if st.Err != nil {
		return Proposal{}, st.Err
	}
	return st.Proposal, nil
}
