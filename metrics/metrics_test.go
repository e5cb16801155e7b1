package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func growthSeries(start, rate float64, days int) []float64 {
	out := []float64{start}
	v := start
	for i := 0; i < days; i++ {
		v *= 1 + rate
		out = append(out, v)
	}
	return out
}

func TestComputeOnePercentGrowth(t *testing.T) {
	t.Parallel()

	values := growthSeries(10000, 0.01, 10)
	p := Compute(values)

	assert.Equal(t, 10, p.TradingDays)
	assert.InDelta(t, 0.1046, p.CumulativeReturn, 1e-4)

	require.NotNil(t, p.AnnualizedReturn)
	want := math.Pow(1+p.CumulativeReturn, 252.0/10.0) - 1
	assert.InDelta(t, want, *p.AnnualizedReturn, 1e-4)

	assert.Equal(t, 0.0, p.SharpeRatio, "constant returns carry no risk-adjusted signal")
	assert.Equal(t, 0.0, p.Volatility)
	assert.Equal(t, 0.0, p.MaxDrawdown)
	assert.Equal(t, 1.0, p.WinRate)
	assert.Nil(t, p.ProfitLossRatio, "no losing days")
}

func TestMaxDrawdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"peak to trough", []float64{100, 90, 80, 95, 110}, 0.20},
		{"monotonic up", []float64{100, 101, 102}, 0},
		{"second peak deeper", []float64{100, 90, 120, 60, 130}, 0.5},
		{"empty", nil, 0},
		{"single", []float64{100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestSharpeZeroStdDev(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01, 0.01, 0.01}))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0, 0, 0, 0}))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.02}))
	assert.False(t, math.IsNaN(SharpeRatio(nil)))
}

func TestSharpeAndVolatility(t *testing.T) {
	t.Parallel()

	r := []float64{0.01, -0.02, 0.03, 0.0}
	mean := 0.005
	sd := math.Sqrt(((0.005 * 0.005) + (0.025 * 0.025) + (0.025 * 0.025) + (0.005 * 0.005)) / 3)

	assert.InDelta(t, sd, StdDev(r), 1e-12)
	assert.InDelta(t, sd*math.Sqrt(252), Volatility(r), 1e-12)
	assert.InDelta(t, mean/sd*math.Sqrt(252), SharpeRatio(r), 1e-9)
}

func TestStdDevUsesSampleDenominator(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, math.Sqrt(5.0/3.0), StdDev([]float64{1, 2, 3, 4}), 1e-12)
}

func TestScenarioDailyReturn(t *testing.T) {
	t.Parallel()

	r := DailyReturns([]float64{10000, 10000, 10050})
	require.Len(t, r, 2)
	assert.Equal(t, 0.0, r[0])
	assert.InDelta(t, 0.005, r[1], 1e-12)
}

func TestWinRateAndProfitLoss(t *testing.T) {
	t.Parallel()

	r := []float64{0.02, -0.01, 0.04, -0.03, 0}
	assert.InDelta(t, 0.4, WinRate(r), 1e-12)

	pl := ProfitLossRatio(r)
	require.NotNil(t, pl)
	assert.InDelta(t, 1.5, *pl, 1e-12)

	onlyLosses := ProfitLossRatio([]float64{-0.01, -0.02})
	require.NotNil(t, onlyLosses)
	assert.Equal(t, 0.0, *onlyLosses)

	assert.Nil(t, ProfitLossRatio([]float64{0.01, 0}))
}

func TestComputeNoTradingDays(t *testing.T) {
	t.Parallel()

	p := Compute([]float64{10000})
	assert.Equal(t, 0, p.TradingDays)
	assert.Nil(t, p.AnnualizedReturn)
	assert.Equal(t, 0.0, p.CumulativeReturn)
	assert.Equal(t, 0.0, p.SharpeRatio)
	assert.Equal(t, 0.0, p.WinRate)
	assert.Nil(t, p.ProfitLossRatio)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"annualized_return":null`)
	assert.Contains(t, string(b), `"profit_loss_ratio":null`)
}

func TestComputeIsReproducible(t *testing.T) {
	t.Parallel()

	values := []float64{10000, 10100, 9900, 10300, 10250, 10400}
	a := Compute(values)
	b := Compute(values)
	assert.Equal(t, a, b)
}

func TestZeroPreviousValue(t *testing.T) {
	t.Parallel()

	r := DailyReturns([]float64{0, 100, 110})
	assert.Equal(t, []float64{0, 0.1}, []float64{r[0], math.Round(r[1]*1e12) / 1e12})
	assert.Nil(t, AnnualizedReturn([]float64{0, 100}))
}
