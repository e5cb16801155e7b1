package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/ledger"
	"github.com/rustyeddy/aitrader/market"
)

func TestBuyAndHold(t *testing.T) {
	t.Parallel()

	e := testEngine(testGateway())

	out := e.Run(context.Background(), BuyAndHold{Fraction: 0.5}, input(3))
	require.NoError(t, out.Err)
	assert.Equal(t, ledger.Action{Kind: ledger.Buy, Symbol: "AAPL", Quantity: 50, Price: 100, Rationale: "buy and hold AAPL"}, out.Action)

	invested := input(3)
	invested.Portfolio.Positions = map[string]journal.Position{"AAPL": {Symbol: "AAPL", Quantity: 50}}
	out = e.Run(context.Background(), BuyAndHold{}, invested)
	assert.True(t, out.Action.IsHold())
	assert.Equal(t, 1, out.Steps)
}

func TestBuyAndHoldAsksForMissingQuote(t *testing.T) {
	t.Parallel()

	in := input(3)
	in.Symbols = nil
	out := testEngine(testGateway()).Run(context.Background(), BuyAndHold{Symbol: "MSFT"}, in)

	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Steps)
	assert.Equal(t, ledger.Buy, out.Action.Kind)
	assert.Equal(t, 25.0, out.Action.Quantity)
	assert.Equal(t, 400.0, out.Action.Price)

	in.Portfolio.Cash = 10
	out = testEngine(testGateway()).Run(context.Background(), BuyAndHold{Symbol: "MSFT"}, in)
	assert.True(t, out.Action.IsHold())

	out = testEngine(testGateway()).Run(context.Background(), BuyAndHold{Symbol: "NOPE"}, in)
	assert.True(t, out.Action.IsHold())
	assert.Equal(t, 2, out.Steps)
}

func TestScriptedPerDay(t *testing.T) {
	t.Parallel()

	s := &Scripted{
		Days: map[market.Day][]Step{
			"2025-10-02": {{Proposal: Act(ledger.Action{Kind: ledger.Sell, Symbol: "AAPL", Quantity: 1})}},
		},
		Default: []Step{{}, {Proposal: Act(ledger.HoldAction("default"))}},
	}

	p, err := s.Propose(context.Background(), &Context{Day: "2025-10-02", Step: 1})
	require.NoError(t, err)
	assert.Equal(t, ledger.Sell, p.Action.Kind)

	p, err = s.Propose(context.Background(), &Context{Day: "2025-10-03", Step: 1})
	require.NoError(t, err)
	assert.Nil(t, p.Action)
	assert.Nil(t, p.ToolCall)

	p, err = s.Propose(context.Background(), &Context{Day: "2025-10-03", Step: 2})
	require.NoError(t, err)
	assert.Equal(t, "default", p.Action.Rationale)

	p, err = s.Propose(context.Background(), &Context{Day: "2025-10-03", Step: 9})
	require.NoError(t, err)
	assert.Equal(t, Proposal{}, p)
}

func TestHold(t *testing.T) {
	t.Parallel()

	p, err := Hold{}.Propose(context.Background(), &Context{})
	require.NoError(t, err)
	assert.True(t, p.Action.IsHold())
}
