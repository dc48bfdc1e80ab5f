package backtest

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
)

func day(s string) time.Time {
	d, err := series.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// dailySeries builds a calendar-daily series over [from, to]
func dailySeries(symbol, from, to string, price func(time.Time) float64) *series.Series {
	var points []core.PricePoint
	for d := day(from); !d.After(day(to)); d = d.AddDate(0, 0, 1) {
		points = append(points, core.PricePoint{Date: d, Close: price(d)})
	}
	return series.New(symbol, points)
}

// ramp moves geometrically from v0 at t0 to v1 at t1
func ramp(d, t0, t1 time.Time, v0, v1 float64) float64 {
	frac := d.Sub(t0).Hours() / t1.Sub(t0).Hours()
	return v0 * math.Pow(v1/v0, frac)
}

// driftPrice is 100 up to the earnings date, 110 three months later, 121
// twelve months later, flat afterwards
func driftPrice(earn string) func(time.Time) float64 {
	e := day(earn)
	entry := series.AddMonths(e, 3)
	exit := series.AddMonths(e, 12)
	return func(d time.Time) float64 {
		switch {
		case !d.After(e):
			return 100
		case !d.After(entry):
			return ramp(d, e, entry, 100, 110)
		case !d.After(exit):
			return ramp(d, entry, exit, 110, 121)
		default:
			return 121
		}
	}
}

func constant(v float64) func(time.Time) float64 {
	return func(time.Time) float64 { return v }
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// fakePrices serves a fixed table
type fakePrices struct {
	table *series.Table
	err   error
}

func (f *fakePrices) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*series.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

// fakeEarnings serves fixed dates per ticker and counts calls
type fakeEarnings struct {
	mu    sync.Mutex
	dates map[string][]time.Time
	errs  map[string]error
	calls []string
}

func (f *fakeEarnings) FetchEarningsDates(ctx context.Context, symbol string, limit int) ([]time.Time, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()

	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	if symbol == "PANIC" {
		panic("provider exploded")
	}
	return f.dates[symbol], nil
}

var errCalendar = errors.New("calendar unavailable")

// countingRecorder captures engine telemetry
type countingRecorder struct {
	runs   map[string]int
	skips  map[string]int
	trades int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{runs: map[string]int{}, skips: map[string]int{}}
}

func (c *countingRecorder) RecordRun(variant, status string, seconds float64) {
	c.runs[variant+"/"+status]++
}
func (c *countingRecorder) RecordSkip(reason string)           { c.skips[reason]++ }
func (c *countingRecorder) RecordTrades(variant string, n int) { c.trades += n }

// testConfig is a drift run over 2019..2021-06 on the given tickers
func testConfig(tickers ...string) Config {
	return Config{
		Tickers:            tickers,
		Benchmark:          "SPY",
		Start:              day("2019-01-01"),
		End:                day("2021-06-30"),
		Rule:               DriftRule(0),
		MinHistoryDays:     400,
		CalendarPadDays:    5,
		PriceLookbackDays:  500,
		PriceLookaheadDays: 2,
		EarningsLimit:      240,
		FetchConcurrency:   2,
	}
}
