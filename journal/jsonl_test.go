package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/aitrader/market"
)

func newTestJSONL(t *testing.T) *JSONL {
	t.Helper()

	j, err := NewJSONL(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJSONLLayout(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)
	sig := "gpt-4o"

	require.NoError(t, j.RecordSnapshot(sampleSnapshot(sig, "2025-10-01", 9000)))
	require.NoError(t, j.RecordTrade(sampleTrade("T1", sig, "2025-10-01")))
	require.NoError(t, j.RecordTrace(sampleTrace(sig, "2025-10-01")))
	require.NoError(t, j.RecordMetrics(MetricsRecord{RunID: "r1", ModelName: sig}))

	for _, rel := range []string{
		"gpt-4o/position/position.jsonl",
		"gpt-4o/trades/trades.jsonl",
		"gpt-4o/log/2025-10-01/log.jsonl",
		"gpt-4o/metrics/performance_metrics.jsonl",
	} {
		_, err := os.Stat(filepath.Join(j.Dir(), filepath.FromSlash(rel)))
		assert.NoError(t, err, rel)
	}
}

func TestJSONLRoundTripInWriteOrder(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)
	sig := "claude"

	days := []market.Day{"2025-10-01", "2025-10-02", "2025-10-03"}
	for i, d := range days {
		require.NoError(t, j.RecordSnapshot(sampleSnapshot(sig, d, 9000+float64(i))))
	}
	require.NoError(t, j.RecordTrade(sampleTrade("T1", sig, "2025-10-01")))
	require.NoError(t, j.RecordTrade(sampleTrade("T2", sig, "2025-10-03")))

	snaps, err := j.Snapshots(sig)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, s := range snaps {
		assert.Equal(t, days[i], s.TradingDay)
		assert.Equal(t, 9000+float64(i), s.Cash)
		assert.Equal(t, 10.0, s.Positions["AAPL"].Quantity)
	}

	trades, err := j.Trades(sig)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "T1", trades[0].TradeID)
	assert.Equal(t, "T2", trades[1].TradeID)
	assert.Equal(t, Buy, trades[1].Side)
}

func TestJSONLMissingStreams(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)

	snaps, err := j.Snapshots("nobody")
	assert.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = j.LatestMetrics("nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = j.Traces("nobody", "2025-10-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONLTraceIsWriteOnce(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)
	sig := "m1"
	day := market.Day("2025-10-01")

	first := sampleTrace(sig, day)
	require.NoError(t, j.RecordTrace(first))

	second := sampleTrace(sig, day)[:1]
	second[0].Tool = "search"
	require.NoError(t, j.RecordTrace(second))

	got, err := j.Traces(sig, day)
	require.NoError(t, err)
	assert.Len(t, got, len(first), "original log must not be rewritten")
	assert.Equal(t, "get_price", got[0].Tool)

	_, err = os.Stat(filepath.Join(j.SignatureDir(sig), "log", "2025-10-01", "log.1.jsonl"))
	assert.NoError(t, err)
}

func TestJSONLLatestMetrics(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)
	require.NoError(t, j.RecordMetrics(MetricsRecord{RunID: "r1", ModelName: "m"}))
	require.NoError(t, j.RecordMetrics(MetricsRecord{RunID: "r2", ModelName: "m"}))

	m, err := j.LatestMetrics("m")
	require.NoError(t, err)
	assert.Equal(t, "r2", m.RunID)
}

func TestJSONLSanitizesSignature(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)
	sig := "openai/gpt-4o:latest"
	require.NoError(t, j.RecordSnapshot(sampleSnapshot(sig, "2025-10-01", 1)))

	assert.Equal(t, filepath.Join(j.Dir(), "openai_gpt-4o-latest"), j.SignatureDir(sig))

	snaps, err := j.Snapshots(sig)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, sig, snaps[0].ModelSignature)
}

func TestJSONLIgnoresTornFinalLine(t *testing.T) {
	t.Parallel()

	j := newTestJSONL(t)
	sig := "m"
	require.NoError(t, j.RecordSnapshot(sampleSnapshot(sig, "2025-10-01", 1)))
	require.NoError(t, j.Close())

	path := filepath.Join(j.SignatureDir(sig), "position", "position.jsonl")
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fh.WriteString(`{"model_signature":"m","trad`)
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	snaps, err := j.Snapshots(sig)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestJSONLCorruptMiddleLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewJSONL(dir)
	require.NoError(t, err)

	path := filepath.Join(j.SignatureDir("m"), "trades", "trades.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	body := strings.Join([]string{`{"trade_id":"T1"}`, `not json`, `{"trade_id":"T2"}`}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err = j.Trades("m")
	assert.Error(t, err)
}

func TestTee(t *testing.T) {
	t.Parallel()

	a, b := &Memory{}, &Memory{}
	j := Tee(a, b)

	require.NoError(t, j.RecordTrade(sampleTrade("T1", "m", "2025-10-01")))
	require.NoError(t, j.RecordSnapshot(sampleSnapshot("m", "2025-10-01", 1)))
	require.NoError(t, j.Close())

	assert.Len(t, a.TradeRecords, 1)
	assert.Len(t, b.SnapshotLog, 1)
	assert.True(t, a.Closed)
	assert.True(t, b.Closed)

	failing := &Memory{Fail: assert.AnError}
	ok := &Memory{}
	err := Tee(failing, ok).RecordTrade(sampleTrade("T2", "m", "2025-10-01"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, ok.TradeRecords, 1, "a failing sink must not stop the others")
}
