package backtest

import (
	"testing"
	"time"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(symbol, from string, closes ...float64) *series.Series {
	points := make([]core.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = core.PricePoint{Date: day(from).AddDate(0, 0, i), Close: c}
	}
	return series.New(symbol, points)
}

func TestCanonicalIndex(t *testing.T) {
	table := series.NewTable(seriesOf("AAA", "2020-01-01", 1, 2, 3, 4, 5))
	index := CanonicalIndex(table, day("2020-01-02"), day("2020-01-04"))

	require.Len(t, index, 3)
	assert.Equal(t, day("2020-01-02"), index[0])
	assert.Equal(t, day("2020-01-04"), index[2])
}

func TestStrategyEquity_EqualWeight(t *testing.T) {
	table := series.NewTable(
		seriesOf("AAA", "2020-01-01", 100, 110, 121, 121, 121, 121),
		seriesOf("BBB", "2020-01-01", 50, 50, 55, 66, 66, 66),
	)
	ledger := Ledger{
		{Ticker: "AAA", EntryDate: day("2020-01-01"), ExitDate: day("2020-01-03")},
		{Ticker: "BBB", EntryDate: day("2020-01-02"), ExitDate: day("2020-01-04")},
	}
	index := CanonicalIndex(table, day("2020-01-01"), day("2020-01-06"))
	curve := StrategyEquity(table, ledger, index)

	// day 2: AAA +10%, BBB enters flat; day 3: both +10%; day 4: BBB alone +20%
	want := []float64{1, 1.05, 1.155, 1.386, 1.386, 1.386}
	require.Len(t, curve, len(want))
	for i, w := range want {
		assert.InDelta(t, w, curve[i].Value, 1e-12, "day %d", i)
	}

	returns := curve.Returns()
	assert.InDelta(t, 0.05, returns[0], 1e-12)
	assert.InDelta(t, 0.10, returns[1], 1e-12)
	assert.InDelta(t, 0.20, returns[2], 1e-12)
	assert.Zero(t, returns[3], "no open trades means cash")
}

func TestStrategyEquity_SingleTradeMatchesHoldReturn(t *testing.T) {
	table := series.NewTable(
		dailySeries("AAA", "2017-06-01", "2021-12-31", driftPrice("2020-01-10")),
		dailySeries("SPY", "2017-06-01", "2021-12-31", constant(300)),
	)
	cfg := testConfig("AAA")
	ledger, _ := GenerateTrades(table, map[string][]time.Time{"AAA": {day("2020-01-10")}}, cfg)
	require.Len(t, ledger, 1)

	index := CanonicalIndex(table, cfg.Start, cfg.End)
	curve := StrategyEquity(table, ledger, index)

	assert.Equal(t, 1.0, curve[0].Value)
	for _, p := range curve {
		switch {
		case !p.Date.After(ledger[0].EntryDate):
			assert.Equal(t, 1.0, p.Value, "flat before entry on %s", p.Date)
		case !p.Date.Before(ledger[0].ExitDate):
			assert.InDelta(t, 1+ledger[0].HoldReturn, p.Value, 1e-9, "flat after exit on %s", p.Date)
		}
	}
	assert.InDelta(t, 1.10, curve.Final(), 1e-9)
}

func TestStrategyEquity_NoTrades(t *testing.T) {
	table := series.NewTable(seriesOf("SPY", "2020-01-01", 1, 2, 3))
	index := CanonicalIndex(table, day("2020-01-01"), day("2020-01-03"))

	curve := StrategyEquity(table, nil, index)
	require.Len(t, curve, 3)
	for _, p := range curve {
		assert.Equal(t, 1.0, p.Value)
	}
}

func TestBenchmarkEquity(t *testing.T) {
	table := series.NewTable(
		seriesOf("AAA", "2020-01-01", 1, 1, 1, 1, 1),
		seriesOf("SPY", "2020-01-03", 100, 105, 84),
	)
	index := CanonicalIndex(table, day("2020-01-01"), day("2020-01-05"))
	curve := BenchmarkEquity(table, "SPY", index)

	want := []float64{1, 1, 1, 1.05, 0.84}
	require.Len(t, curve, len(want))
	for i, w := range want {
		assert.InDelta(t, w, curve[i].Value, 1e-12, "day %d", i)
	}
}

func TestBenchmarkEquity_MissingSymbol(t *testing.T) {
	table := series.NewTable(seriesOf("AAA", "2020-01-01", 1, 2))
	curve := BenchmarkEquity(table, "SPY", table.Dates())

	require.Len(t, curve, 2)
	assert.Equal(t, 1.0, curve.Final())
}
