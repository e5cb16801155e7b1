package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	tr := sampleTrade("01JB8Z6Q3F4X", "gpt-4o", "2025-10-01")
	out := FormatTradeOrg(tr)

	assert.True(t, strings.HasPrefix(out, "** 2025-10-01 BUY AAPL (01JB8Z6Q)\n"))
	assert.Contains(t, out, ":TRADE_ID: 01JB8Z6Q3F4X\n")
	assert.Contains(t, out, ":MODEL: gpt-4o\n")
	assert.Contains(t, out, ":QUANTITY: 10\n")
	assert.Contains(t, out, ":PRICE: 100.0000\n")
	assert.Contains(t, out, ":NOTIONAL: 1000.00\n")
	assert.Contains(t, out, "*** Rationale\nmomentum\n")
}

func TestFormatTradeOrgNoRationale(t *testing.T) {
	t.Parallel()

	tr := sampleTrade("T1", "m", "2025-10-01")
	tr.Rationale = ""
	assert.Contains(t, FormatTradeOrg(tr), "*** Rationale\n- \n")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatTradesOrg(nil))

	out := FormatTradesOrg([]TradeRecord{
		sampleTrade("T1", "m", "2025-10-01"),
		sampleTrade("T2", "m", "2025-10-02"),
	})
	assert.Equal(t, 2, strings.Count(out, ":PROPERTIES:"))
	assert.Less(t, strings.Index(out, "T1"), strings.Index(out, "T2"))
}

func TestFormatMetricsOrg(t *testing.T) {
	t.Parallel()

	m := NewMetricsRecord("r", "m", 10000, nil)
	out := FormatMetricsOrg(m)
	assert.Contains(t, out, "| annualized_return  |            n/a |")
	assert.Contains(t, out, "| trading_days       |              0 |")
}

func TestShortID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("123456789"))
}
