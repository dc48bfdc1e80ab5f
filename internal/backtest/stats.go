package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily figures
const TradingDaysPerYear = 252

// ComputeStatistics derives the summary metrics from the ledger and the
// two equity curves. Trade metrics are NaN without trades; curve metrics
// follow CAGR, Sharpe and MaxDrawdown.
func ComputeStatistics(ledger Ledger, equity, benchmark EquityCurve) Statistics {
	s := Statistics{
		Trades:               len(ledger),
		WinRate:              math.NaN(),
		AvgTradeReturn:       math.NaN(),
		MedianTradeReturn:    math.NaN(),
		StrategyCAGR:         CAGR(equity),
		BenchmarkCAGR:        CAGR(benchmark),
		StrategySharpe:       Sharpe(equity.Returns()),
		BenchmarkSharpe:      Sharpe(benchmark.Returns()),
		StrategyMaxDrawdown:  MaxDrawdown(equity),
		BenchmarkMaxDrawdown: MaxDrawdown(benchmark),
	}

	if len(ledger) == 0 {
		return s
	}

	var wins int
	for _, t := range ledger {
		if t.IsWin() {
			wins++
		}
	}

	returns := ledger.HoldReturns()
	s.WinRate = float64(wins) / float64(len(ledger))
	s.AvgTradeReturn = stat.Mean(returns, nil)
	s.MedianTradeReturn = median(returns)
	return s
}

// CAGR annualizes the curve's final value over its length in trading days.
// NaN with fewer than two points.
func CAGR(curve EquityCurve) float64 {
	if len(curve) < 2 {
		return math.NaN()
	}
	return math.Pow(curve.Final(), float64(TradingDaysPerYear)/float64(len(curve))) - 1
}

// Sharpe is the annualized mean over the annualized population standard
// deviation of daily returns, with no risk-free rate. NaN when the
// deviation is zero or there are no returns.
func Sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	mean, std := stat.PopMeanStdDev(returns, nil)
	if !(std > 0) {
		return math.NaN()
	}
	return (mean * TradingDaysPerYear) / (std * math.Sqrt(TradingDaysPerYear))
}

// MaxDrawdown is the most negative value/running-peak - 1 along the curve.
// NaN for an empty curve.
func MaxDrawdown(curve EquityCurve) float64 {
	if len(curve) == 0 {
		return math.NaN()
	}

	peak := math.Inf(-1)
	worst := 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if dd := p.Value/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// median averages the two middle values of an even-length sample
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
