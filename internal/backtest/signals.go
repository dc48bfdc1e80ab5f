package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/driftlab/internal/series"
)

// NormalizeEarnings truncates dates to midnight, keeps those within
// [from, to], sorts ascending and removes duplicates
func NormalizeEarnings(dates []time.Time, from, to time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = series.Day(d)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	uniq := out[:0]
	for _, d := range out {
		if n := len(uniq); n > 0 && uniq[n-1].Equal(d) {
			continue
		}
		uniq = append(uniq, d)
	}
	return uniq
}

// checkHistory reports whether a ticker's price column is usable at all
func checkHistory(table *series.Table, ticker string, minDays int) (*series.Series, SkipReason, bool) {
	px := table.Column(ticker)
	if px.Empty() {
		return nil, SkipNoPrices, false
	}
	if px.SpanDays() < minDays {
		return nil, SkipShortHistory, false
	}
	return px, "", true
}

// GenerateTrades scans each ticker's earnings dates and emits the trades
// admitted by cfg.Rule. earnings must already be normalized (see
// NormalizeEarnings). Tickers and events that cannot produce a trade are
// returned as skips; nothing here fails the run.
func GenerateTrades(table *series.Table, earnings map[string][]time.Time, cfg Config) (Ledger, []Skip) {
	var (
		ledger  Ledger
		skipped []Skip
	)

	lastDate := table.Last()
	signalEnd := cfg.SignalEnd()

	for _, ticker := range cfg.Tickers {
		px, reason, ok := checkHistory(table, ticker, cfg.MinHistoryDays)
		if !ok {
			skipped = append(skipped, Skip{Ticker: ticker, Reason: reason})
			continue
		}

		dates := earnings[ticker]
		if len(dates) == 0 {
			skipped = append(skipped, Skip{Ticker: ticker, Reason: SkipNoEarnings})
			continue
		}

		for _, e := range dates {
			trade, reason, ok := evaluateEvent(px, ticker, e, lastDate, signalEnd, cfg.Rule)
			if !ok {
				skipped = append(skipped, Skip{Ticker: ticker, Date: e, Reason: reason})
				continue
			}
			ledger = append(ledger, trade)
		}
	}

	ledger.Sort()
	return ledger, skipped
}

// evaluateEvent maps one earnings date to a candidate trade and applies the
// entry rule
func evaluateEvent(px *series.Series, ticker string, e, lastDate, signalEnd time.Time, rule SignalRule) (Trade, SkipReason, bool) {
	if e.Before(px.First()) {
		return Trade{}, SkipBeforeHistory, false
	}
	if e.After(signalEnd) {
		return Trade{}, SkipAfterWindow, false
	}

	entryIdx, ok := px.Nearest(series.AddMonths(e, EntryOffsetMonths))
	if !ok {
		return Trade{}, SkipEntryNotBeforeExit, false
	}
	exitIdx, ok := px.Nearest(series.AddMonths(e, ExitOffsetMonths))
	if !ok {
		return Trade{}, SkipEntryNotBeforeExit, false
	}

	entry, exit := px.At(entryIdx), px.At(exitIdx)
	if !entry.Date.Before(exit.Date) {
		return Trade{}, SkipEntryNotBeforeExit, false
	}
	if !entry.Date.Before(lastDate) {
		return Trade{}, SkipEntryPastData, false
	}

	r3, ok := signalReturn(px, e, entry.Date)
	if !ok {
		return Trade{}, SkipUndefinedSignal, false
	}
	if !rule.Accept(r3) {
		return Trade{}, SkipBelowThreshold, false
	}

	return Trade{
		Ticker:       ticker,
		EarningsDate: e,
		EntryDate:    entry.Date,
		ExitDate:     exit.Date,
		SignalReturn: r3,
		HoldReturn:   exit.Close/entry.Close - 1,
	}, "", true
}

// signalReturn is the as-of close on entry over the as-of close on the
// earnings date, minus one
func signalReturn(px *series.Series, earnings, entry time.Time) (float64, bool) {
	base, ok := px.AsOf(earnings)
	if !ok || base == 0 {
		return 0, false
	}
	end, ok := px.AsOf(entry)
	if !ok {
		return 0, false
	}
	r := end/base - 1
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}
