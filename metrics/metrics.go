// Package metrics derives risk/return statistics from a portfolio value series.
//
// Every function is pure: results depend only on the values passed in, so the
// same history always yields the same numbers regardless of call order.
package metrics

import "math"

// TradingDaysPerYear is the annualisation convention.
const TradingDaysPerYear = 252

// zeroStdDev is the threshold below which a standard deviation is treated as
// zero; identical returns computed from ratios leave rounding noise near 1e-17.
const zeroStdDev = 1e-12

// Performance is the statistics record for one model over one run.
// AnnualizedReturn and ProfitLossRatio are nil when undefined.
type Performance struct {
	TradingDays      int      `json:"trading_days"`
	CumulativeReturn float64  `json:"cumulative_return"`
	AnnualizedReturn *float64 `json:"annualized_return"`
	Volatility       float64  `json:"volatility"`
	SharpeRatio      float64  `json:"sharpe_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	WinRate          float64  `json:"win_rate"`
	ProfitLossRatio  *float64 `json:"profit_loss_ratio"`
}

// Compute derives every statistic from V_0..V_N, where V_0 is the initial
// cash and V_t the total value at the close of trading day t.
func Compute(values []float64) Performance {
	r := DailyReturns(values)
	return Performance{
		TradingDays:      len(r),
		CumulativeReturn: CumulativeReturn(values),
		AnnualizedReturn: AnnualizedReturn(values),
		Volatility:       Volatility(r),
		SharpeRatio:      SharpeRatio(r),
		MaxDrawdown:      MaxDrawdown(values),
		WinRate:          WinRate(r),
		ProfitLossRatio:  ProfitLossRatio(r),
	}
}

// DailyReturns returns V_t/V_{t-1} - 1 for t = 1..N. A zero previous value
// yields a zero return.
func DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for t := 1; t < len(values); t++ {
		prev := values[t-1]
		if prev == 0 {
			continue
		}
		out[t-1] = values[t]/prev - 1
	}
	return out
}

// CumulativeReturn is V_N/V_0 - 1, or 0 for an empty or zero-based series.
func CumulativeReturn(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return values[len(values)-1]/values[0] - 1
}

// AnnualizedReturn compounds the cumulative return to a 252-day year. It is
// nil when there are no returns to annualise.
func AnnualizedReturn(values []float64) *float64 {
	n := len(values) - 1
	if n <= 0 || values[0] == 0 {
		return nil
	}
	base := 1 + CumulativeReturn(values)
	if base < 0 {
		return nil
	}
	a := math.Pow(base, float64(TradingDaysPerYear)/float64(n)) - 1
	return &a
}

// Mean of xs; 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the sample standard deviation (N-1 denominator). Fewer than two
// observations give 0.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(xs)-1))
	if sd < zeroStdDev {
		return 0
	}
	return sd
}

// Volatility is the annualised sample standard deviation of daily returns.
func Volatility(returns []float64) float64 {
	return StdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio assumes a zero risk-free rate. A constant return series has no
// risk to adjust for and reports 0.
func SharpeRatio(returns []float64) float64 {
	sd := StdDev(returns)
	if sd == 0 {
		return 0
	}
	return Mean(returns) / sd * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown is the largest fractional decline from a running peak,
// reported as a positive fraction.
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// WinRate is the fraction of days with a positive return; 0 with no days.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// ProfitLossRatio is the mean winning return over the absolute mean losing
// return. It is nil when there are no losing days.
func ProfitLossRatio(returns []float64) *float64 {
	var gains, losses []float64
	for _, r := range returns {
		switch {
		case r > 0:
			gains = append(gains, r)
		case r < 0:
			losses = append(losses, r)
		}
	}
	if len(losses) == 0 {
		return nil
	}
	ratio := Mean(gains) / math.Abs(Mean(losses))
	return &ratio
}
