package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/market"
)

func runSequence(t *testing.T) (*Ledger, *journal.Memory) {
	t.Helper()

	ctx := context.Background()
	l, mem := newTestLedger(t, 10000)

	steps := []struct {
		day    market.Day
		action Action
		prices map[string]float64
	}{
		{"2025-10-01", buy("AAPL", 10, 100), map[string]float64{"AAPL": 100, "MSFT": 300}},
		{"2025-10-02", buy("MSFT", 5, 310), map[string]float64{"AAPL": 102, "MSFT": 310}},
		{"2025-10-03", HoldAction(""), map[string]float64{"AAPL": 99, "MSFT": 305}},
		{"2025-10-06", sell("AAPL", 4, 104.5), map[string]float64{"AAPL": 104.5, "MSFT": 306}},
		{"2025-10-07", buy("AAPL", 3.5, 101.25), map[string]float64{"AAPL": 101.25, "MSFT": 300}},
	}
	for _, s := range steps {
		_, err := l.Apply(ctx, s.action, s.day, s.prices)
		require.NoError(t, err)
	}
	return l, mem
}

func TestReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	l, mem := runSequence(t)
	want := l.CurrentState()

	for i := 0; i < 2; i++ {
		r, err := Replay("m1", 10000, mem.TradeRecords)
		require.NoError(t, err)

		got := r.CurrentState()
		assert.Equal(t, want.Cash, got.Cash)
		assert.Equal(t, want.Positions, got.Positions)
		assert.Equal(t, l.Trades(), r.Trades())
	}
}

func TestReplayFoldsSameDayTrades(t *testing.T) {
	t.Parallel()

	trades := []journal.TradeRecord{
		{TradeID: "a", ModelSignature: "m", TradingDay: "2025-10-01", Symbol: "AAPL", Side: journal.Buy, Quantity: 2, Price: 10},
		{TradeID: "b", ModelSignature: "m", TradingDay: "2025-10-01", Symbol: "AAPL", Side: journal.Sell, Quantity: 1, Price: 12},
	}
	r, err := Replay("m", 100, trades)
	require.NoError(t, err)
	assert.Len(t, r.History(), 1)
	assert.Equal(t, 92.0, r.CurrentState().Cash)
}

func TestReplayRejectsImpossibleStream(t *testing.T) {
	t.Parallel()

	_, err := Replay("m", 100, []journal.TradeRecord{
		{TradeID: "a", TradingDay: "2025-10-01", Symbol: "AAPL", Side: journal.Sell, Quantity: 1, Price: 10},
	})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRestoreContinuesFromLastSnapshot(t *testing.T) {
	t.Parallel()

	l, mem := runSequence(t)

	restored, err := New("m1", 10000, &journal.Memory{})
	require.NoError(t, err)
	require.NoError(t, restored.Restore(mem.SnapshotLog, mem.TradeRecords))

	assert.Equal(t, l.LastDay(), restored.LastDay())
	assert.Equal(t, l.CurrentState().Cash, restored.CurrentState().Cash)
	assert.Equal(t, []string{"AAPL", "MSFT"}, restored.Holdings())
	assert.Len(t, restored.Trades(), len(mem.TradeRecords))

	_, err = restored.Apply(context.Background(), HoldAction(""), "2025-10-07", nil)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	s, err := restored.Apply(context.Background(), sell("MSFT", 5, 320), "2025-10-08", map[string]float64{"AAPL": 100, "MSFT": 320})
	require.NoError(t, err)
	assert.NotContains(t, s.Positions, "MSFT")
	assert.NoError(t, Verify(s))

	assert.Error(t, restored.Restore(mem.SnapshotLog, nil), "restore twice")
}

func TestRestoreRejectsBrokenHistory(t *testing.T) {
	t.Parallel()

	l, err := New("m1", 100, nil)
	require.NoError(t, err)

	bad := []journal.Snapshot{{ModelSignature: "m1", TradingDay: "2025-10-01", Cash: 100, TotalValue: 150}}
	assert.Error(t, l.Restore(bad, nil))

	other := []journal.Snapshot{{ModelSignature: "m2", TradingDay: "2025-10-01", Cash: 100, TotalValue: 100}}
	assert.Error(t, l.Restore(other, nil))
}

func TestSettleCompletesJournaledTrade(t *testing.T) {
	t.Parallel()

	l, mem := newTestLedger(t, 10000)
	trade := journal.TradeRecord{
		TradeID:        "t-1",
		ModelSignature: "m1",
		TradingDay:     "2025-10-01",
		Symbol:         "AAPL",
		Side:           journal.Buy,
		Quantity:       10,
		Price:          50,
	}

	s, err := l.Settle(trade, map[string]float64{"AAPL": 50, "MSFT": 400})
	require.NoError(t, err)
	assert.InDelta(t, 9500, s.Cash, 1e-9)
	assert.InDelta(t, 10000, s.TotalValue, 1e-9)
	assert.NoError(t, Verify(s))

	assert.Empty(t, mem.TradeRecords, "settled trades are already journaled")
	require.Len(t, mem.SnapshotLog, 1)
	assert.Equal(t, []journal.TradeRecord{trade}, l.Trades())
	assert.Equal(t, market.Day("2025-10-01"), l.LastDay())

	_, err = l.Settle(trade, nil)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	trade.ModelSignature = "m2"
	trade.TradingDay = "2025-10-02"
	_, err = l.Settle(trade, nil)
	assert.Error(t, err)
}
