package backtest

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func driftTable() *series.Table {
	return series.NewTable(
		dailySeries("AAA", "2017-06-01", "2021-12-31", driftPrice("2020-01-10")),
		dailySeries("BBB", "2017-06-01", "2021-12-31", constant(40)),
		dailySeries("SPY", "2017-06-01", "2021-12-31", func(d time.Time) float64 {
			return 300 + float64(d.YearDay()%7)
		}),
	)
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestEngine_Run(t *testing.T) {
	earnings := &fakeEarnings{dates: map[string][]time.Time{
		"AAA": {day("2020-01-10"), day("2016-01-01")},
		"BBB": {day("2020-01-10")},
	}}
	rec := newCountingRecorder()
	engine := NewEngine(&fakePrices{table: driftTable()}, earnings,
		WithLogger(zaptest.NewLogger(t)),
		WithRecorder(rec),
		WithClock(fixedClock()),
	)

	res, err := engine.Run(context.Background(), testConfig("aaa", "BBB"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, []string{"AAA", "BBB"}, []string{res.Trades[0].Ticker, res.Trades[1].Ticker})
	assert.Equal(t, 2, res.Stats.Trades)
	assert.InDelta(t, 0.5, res.Stats.WinRate, 1e-12)

	// AAA gains 10% while BBB sits flat beside it, so each day earns half
	// of AAA's move
	want := 1.0
	seg := driftTable().Column("AAA").Between(res.Trades[0].EntryDate, res.Trades[0].ExitDate)
	for k := 1; k < len(seg); k++ {
		want *= 1 + (seg[k].Close/seg[k-1].Close-1)/2
	}
	assert.InDelta(t, want, res.Equity.Final(), 1e-9)
	assert.Greater(t, res.Equity.Final(), 1.0)
	assert.Less(t, res.Equity.Final(), 1.10)
	assert.Equal(t, 1.0, res.Equity[0].Value)
	assert.Equal(t, 1.0, res.BenchmarkEquity[0].Value)
	assert.Equal(t, len(res.Equity), len(res.BenchmarkEquity))
	assert.Equal(t, day("2019-01-01"), res.Equity[0].Date)
	assert.Equal(t, day("2021-06-30"), res.Equity[len(res.Equity)-1].Date)

	assert.GreaterOrEqual(t, res.Stats.StrategyMaxDrawdown, -1.0)
	assert.LessOrEqual(t, res.Stats.StrategyMaxDrawdown, 0.0)
	assert.Equal(t, time.Second, res.Duration)

	assert.Equal(t, 1, rec.runs["drift/ok"])
	assert.Equal(t, 2, rec.trades)
	assert.Empty(t, res.Skipped, "out-of-window earnings are filtered, not skipped")
}

func TestEngine_Idempotent(t *testing.T) {
	earnings := &fakeEarnings{dates: map[string][]time.Time{
		"AAA": {day("2020-01-10"), day("2019-04-20")},
		"BBB": {day("2019-10-01")},
	}}
	engine := NewEngine(&fakePrices{table: driftTable()}, earnings)
	cfg := testConfig("AAA", "BBB")
	cfg.Rule = BaselineRule()

	first, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Equity, second.Equity)
	assert.Equal(t, first.Skipped, second.Skipped)
}

func TestEngine_BaselineTakesEveryEvent(t *testing.T) {
	earnings := &fakeEarnings{dates: map[string][]time.Time{
		"AAA": {day("2020-01-10")},
		"BBB": {day("2020-01-10")},
	}}
	engine := NewEngine(&fakePrices{table: driftTable()}, earnings)

	cfg := testConfig("AAA", "BBB")
	cfg.Rule = DriftRule(0.05)
	drift, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Rule = BaselineRule()
	base, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Len(t, drift.Trades, 1)
	assert.Len(t, base.Trades, 2)
	assert.GreaterOrEqual(t, len(base.Trades), len(drift.Trades))
}

func TestEngine_EmptyTickers(t *testing.T) {
	engine := NewEngine(&fakePrices{table: driftTable()}, &fakeEarnings{})
	res, err := engine.Run(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	require.NotEmpty(t, res.Equity)
	for _, p := range res.Equity {
		assert.Equal(t, 1.0, p.Value)
	}
	assert.Equal(t, 0.0, res.Stats.StrategyCAGR)
	assert.True(t, math.IsNaN(res.Stats.StrategySharpe))
	assert.Equal(t, 0.0, res.Stats.StrategyMaxDrawdown)
	assert.True(t, math.IsNaN(res.Stats.WinRate))
}

func TestEngine_EarningsFailuresDegrade(t *testing.T) {
	earnings := &fakeEarnings{
		dates: map[string][]time.Time{"AAA": {day("2020-01-10")}},
		errs:  map[string]error{"BBB": errCalendar},
	}
	table := series.NewTable(
		dailySeries("AAA", "2017-06-01", "2021-12-31", driftPrice("2020-01-10")),
		dailySeries("BBB", "2017-06-01", "2021-12-31", constant(40)),
		dailySeries("PANIC", "2017-06-01", "2021-12-31", constant(40)),
		dailySeries("SPY", "2017-06-01", "2021-12-31", constant(300)),
	)
	rec := newCountingRecorder()
	engine := NewEngine(&fakePrices{table: table}, earnings, WithRecorder(rec))

	res, err := engine.Run(context.Background(), testConfig("AAA", "BBB", "PANIC"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	byTicker := map[string]Skip{}
	for _, s := range res.Skipped {
		byTicker[s.Ticker] = s
	}
	assert.Equal(t, SkipEarningsFetch, byTicker["BBB"].Reason)
	assert.Contains(t, byTicker["BBB"].Detail, "calendar unavailable")
	assert.Equal(t, SkipEarningsFetch, byTicker["PANIC"].Reason)
	assert.Contains(t, byTicker["PANIC"].Detail, "panic")
	assert.Equal(t, 2, rec.skips[string(SkipEarningsFetch)])
}

func TestEngine_SkipsEarningsForUnusableTickers(t *testing.T) {
	earnings := &fakeEarnings{}
	engine := NewEngine(&fakePrices{table: driftTable()}, earnings)

	res, err := engine.Run(context.Background(), testConfig("AAA", "MISSING"))
	require.NoError(t, err)

	sort.Strings(earnings.calls)
	assert.Equal(t, []string{"AAA"}, earnings.calls)
	assert.Len(t, res.Skipped, 2)
}

func TestEngine_PriceFailureDegrades(t *testing.T) {
	engine := NewEngine(&fakePrices{err: core.ErrNoData}, &fakeEarnings{})
	res, err := engine.Run(context.Background(), testConfig("AAA"))
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Empty(t, res.Equity)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkipNoPrices, res.Skipped[0].Reason)
}

func TestEngine_InvalidConfig(t *testing.T) {
	rec := newCountingRecorder()
	engine := NewEngine(&fakePrices{table: driftTable()}, &fakeEarnings{}, WithRecorder(rec))

	cfg := testConfig("AAA")
	cfg.End = cfg.Start.AddDate(-1, 0, 0)
	_, err := engine.Run(context.Background(), cfg)

	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	assert.Equal(t, 1, rec.runs["drift/invalid"])
}

func TestEngine_Cancelled(t *testing.T) {
	rec := newCountingRecorder()
	engine := NewEngine(&fakePrices{table: driftTable()}, &fakeEarnings{}, WithRecorder(rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, testConfig("AAA"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.runs["drift/cancelled"])
}
