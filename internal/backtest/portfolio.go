package backtest

import (
	"time"

	"github.com/newthinker/driftlab/internal/series"
)

// CanonicalIndex returns the table dates within [start, end]
func CanonicalIndex(table *series.Table, start, end time.Time) []time.Time {
	var index []time.Time
	for _, d := range table.Dates() {
		if d.Before(start) || d.After(end) {
			continue
		}
		index = append(index, d)
	}
	return index
}

// StrategyEquity builds the equal-weight equity curve of the ledger over
// index. Each trade contributes its ticker's daily percent change on every
// table date from entry to exit inclusive, with zero on the entry day. A
// day's portfolio return is the mean over trades open that day, or zero
// when none is open.
func StrategyEquity(table *series.Table, ledger Ledger, index []time.Time) EquityCurve {
	pos := make(map[time.Time]int, len(index))
	for i, d := range index {
		pos[d] = i
	}

	sums := make([]float64, len(index))
	open := make([]int, len(index))
	columns := make(map[string]*series.Series)

	for _, t := range ledger {
		px, ok := columns[t.Ticker]
		if !ok {
			px = table.Column(t.Ticker)
			columns[t.Ticker] = px
		}

		seg := px.Between(t.EntryDate, t.ExitDate)
		for k, p := range seg {
			i, ok := pos[p.Date]
			if !ok {
				continue
			}
			if k > 0 {
				sums[i] += p.Close/seg[k-1].Close - 1
			}
			open[i]++
		}
	}

	returns := make([]float64, len(index))
	for i := range index {
		if open[i] > 0 {
			returns[i] = sums[i] / float64(open[i])
		}
	}
	return compound(index, returns)
}

// BenchmarkEquity compounds the benchmark's daily percent change over
// index. Days before the benchmark's first quote contribute zero.
func BenchmarkEquity(table *series.Table, benchmark string, index []time.Time) EquityCurve {
	px := table.Column(benchmark)
	returns := make([]float64, len(index))

	prev, havePrev := 0.0, false
	for i, d := range index {
		v, ok := px.AsOf(d)
		if !ok {
			havePrev = false
			continue
		}
		if havePrev {
			returns[i] = v/prev - 1
		}
		prev, havePrev = v, true
	}
	return compound(index, returns)
}

// compound turns daily returns into a cumulative product curve
func compound(index []time.Time, returns []float64) EquityCurve {
	curve := make(EquityCurve, len(index))
	value := 1.0
	for i, d := range index {
		value *= 1 + returns[i]
		curve[i] = EquityPoint{Date: d, Value: value}
	}
	return curve
}
