package backtest

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Result holds the complete output of one run
type Result struct {
	Config          Config
	Stats           Statistics
	Trades          Ledger
	Equity          EquityCurve
	BenchmarkEquity EquityCurve
	Skipped         []Skip
	StartedAt       time.Time
	Duration        time.Duration
}

// Trade is one earnings event that passed the entry rule
type Trade struct {
	Ticker       string
	EarningsDate time.Time
	EntryDate    time.Time
	ExitDate     time.Time
	SignalReturn float64 // close(entry)/close(earnings) - 1
	HoldReturn   float64 // close(exit)/close(entry) - 1
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.HoldReturn > 0
}

// IsOpenOn reports whether day falls inside the holding window, inclusive
func (t Trade) IsOpenOn(day time.Time) bool {
	return !day.Before(t.EntryDate) && !day.After(t.ExitDate)
}

// Ledger is the ordered list of trades of a run
type Ledger []Trade

// Sort orders the ledger by entry date, then ticker. Ties keep their
// generation order.
func (l Ledger) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if !l[i].EntryDate.Equal(l[j].EntryDate) {
			return l[i].EntryDate.Before(l[j].EntryDate)
		}
		return l[i].Ticker < l[j].Ticker
	})
}

// HoldReturns returns the holding return of every trade in order
func (l Ledger) HoldReturns() []float64 {
	out := make([]float64, len(l))
	for i, t := range l {
		out[i] = t.HoldReturn
	}
	return out
}

// EquityPoint is the portfolio value on one date
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EquityCurve is a date-indexed portfolio value series starting at 1.0
type EquityCurve []EquityPoint

// Values returns the curve's values in order
func (c EquityCurve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Value
	}
	return out
}

// Final returns the last value, NaN for an empty curve
func (c EquityCurve) Final() float64 {
	if len(c) == 0 {
		return math.NaN()
	}
	return c[len(c)-1].Value
}

// Returns is the day-over-day percent change, one shorter than the curve
func (c EquityCurve) Returns() []float64 {
	if len(c) < 2 {
		return nil
	}
	out := make([]float64, 0, len(c)-1)
	for i := 1; i < len(c); i++ {
		r := c[i].Value/c[i-1].Value - 1
		if math.IsNaN(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Statistics summarizes a run. Undefined metrics are NaN.
type Statistics struct {
	Trades               int
	WinRate              float64
	AvgTradeReturn       float64
	MedianTradeReturn    float64
	StrategyCAGR         float64
	BenchmarkCAGR        float64
	StrategySharpe       float64
	BenchmarkSharpe      float64
	StrategyMaxDrawdown  float64
	BenchmarkMaxDrawdown float64
}

// MarshalJSON encodes NaN metrics as null
func (s Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Trades               int      `json:"trades"`
		WinRate              *float64 `json:"win_rate"`
		AvgTradeReturn       *float64 `json:"avg_trade_return"`
		MedianTradeReturn    *float64 `json:"median_trade_return"`
		StrategyCAGR         *float64 `json:"equity_cagr"`
		BenchmarkCAGR        *float64 `json:"bench_cagr"`
		StrategySharpe       *float64 `json:"sharpe"`
		BenchmarkSharpe      *float64 `json:"bench_sharpe"`
		StrategyMaxDrawdown  *float64 `json:"max_drawdown"`
		BenchmarkMaxDrawdown *float64 `json:"bench_max_drawdown"`
	}{
		Trades:               s.Trades,
		WinRate:              finite(s.WinRate),
		AvgTradeReturn:       finite(s.AvgTradeReturn),
		MedianTradeReturn:    finite(s.MedianTradeReturn),
		StrategyCAGR:         finite(s.StrategyCAGR),
		BenchmarkCAGR:        finite(s.BenchmarkCAGR),
		StrategySharpe:       finite(s.StrategySharpe),
		BenchmarkSharpe:      finite(s.BenchmarkSharpe),
		StrategyMaxDrawdown:  finite(s.StrategyMaxDrawdown),
		BenchmarkMaxDrawdown: finite(s.BenchmarkMaxDrawdown),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// SkipReason classifies why a ticker or an earnings event produced no trade
type SkipReason string

const (
	// Ticker level, data unavailable
	SkipNoPrices      SkipReason = "no_prices"
	SkipShortHistory  SkipReason = "short_history"
	SkipNoEarnings    SkipReason = "no_earnings"
	SkipEarningsFetch SkipReason = "earnings_fetch"

	// Event level, date unmappable or signal undefined
	SkipBeforeHistory      SkipReason = "before_history"
	SkipAfterWindow        SkipReason = "after_window"
	SkipEntryNotBeforeExit SkipReason = "entry_not_before_exit"
	SkipEntryPastData      SkipReason = "entry_past_data"
	SkipUndefinedSignal    SkipReason = "undefined_signal"
	SkipBelowThreshold     SkipReason = "below_threshold"
)

// Skip records a ticker or event that was left out of the ledger. Date is
// zero for ticker-level skips.
type Skip struct {
	Ticker string     `json:"ticker"`
	Date   time.Time  `json:"date,omitzero"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}
