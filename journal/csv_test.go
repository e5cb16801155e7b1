package journal

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTradesCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := sampleTrade("T1", "m", "2025-10-01")
	tr.Rationale = "breakout, volume up"
	require.NoError(t, WriteTradesCSV(&buf, []TradeRecord{tr}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"trade_id", "model_signature", "trading_day", "symbol", "side", "quantity", "price", "rationale"}, rows[0])
	assert.Equal(t, []string{"T1", "m", "2025-10-01", "AAPL", "buy", "10.000000", "100.000000", "breakout, volume up"}, rows[1])
}

func TestWriteSnapshotsCSV(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot("m", "2025-10-01", 9000)
	s.Positions["MSFT"] = Position{Symbol: "MSFT", Quantity: 2.5}
	s.Prices["MSFT"] = 400

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshotsCSV(&buf, []Snapshot{s}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2050.000000", rows[1][3])
	assert.Equal(t, "AAPL:10;MSFT:2.5", rows[1][5])
}

func TestWriteCSVEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, nil))
	assert.Equal(t, "trade_id,model_signature,trading_day,symbol,side,quantity,price,rationale\n", buf.String())
}
