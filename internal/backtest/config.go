package backtest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
)

// RuleKind selects how the three-month signal return gates an entry
type RuleKind int

const (
	// DriftThreshold enters only when the signal return reaches the threshold
	DriftThreshold RuleKind = iota
	// AlwaysEnter enters after every earnings event (baseline hold)
	AlwaysEnter
)

// String returns the variant name used in configs, metrics and reports
func (k RuleKind) String() string {
	switch k {
	case DriftThreshold:
		return "drift"
	case AlwaysEnter:
		return "baseline"
	default:
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
}

// ParseVariant maps a variant name to its RuleKind
func ParseVariant(s string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drift":
		return DriftThreshold, nil
	case "baseline", "always":
		return AlwaysEnter, nil
	default:
		return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown variant %q", s))
	}
}

// SignalRule is the entry predicate applied to the signal return
type SignalRule struct {
	Kind      RuleKind
	Threshold float64
}

// DriftRule enters when R3 >= threshold
func DriftRule(threshold float64) SignalRule {
	return SignalRule{Kind: DriftThreshold, Threshold: threshold}
}

// BaselineRule enters unconditionally
func BaselineRule() SignalRule {
	return SignalRule{Kind: AlwaysEnter}
}

// Accept reports whether a trade with signal return r3 is taken
func (r SignalRule) Accept(r3 float64) bool {
	if r.Kind == AlwaysEnter {
		return true
	}
	return r3 >= r.Threshold
}

// Variant returns the rule's variant name
func (r SignalRule) Variant() string {
	return r.Kind.String()
}

// DefaultTickers is the illustrative large-cap basket
var DefaultTickers = []string{"AAPL", "MSFT", "NVDA", "AMZN", "META", "AVGO", "GOOGL"}

// Offsets from the earnings date, in calendar months
const (
	EntryOffsetMonths = 3
	ExitOffsetMonths  = 12
)

// Config is the immutable parameter set of one run
type Config struct {
	Tickers         []string
	Benchmark       string
	Start           time.Time
	End             time.Time
	Rule            SignalRule
	MinHistoryDays  int
	CalendarPadDays int

	// Price window extension around [Start, End]
	PriceLookbackDays  int
	PriceLookaheadDays int

	// EarningsLimit bounds the announcement history requested per ticker
	EarningsLimit int

	// FetchConcurrency bounds parallel earnings requests
	FetchConcurrency int
}

// DefaultConfig returns the default run parameters ending on today
func DefaultConfig(today time.Time) Config {
	return Config{
		Tickers:            append([]string(nil), DefaultTickers...),
		Benchmark:          "SPY",
		Start:              time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:                series.Day(today),
		Rule:               DriftRule(0),
		MinHistoryDays:     400,
		CalendarPadDays:    5,
		PriceLookbackDays:  500,
		PriceLookaheadDays: 2,
		EarningsLimit:      240,
		FetchConcurrency:   4,
	}
}

// Normalize returns a copy with upper-cased, de-duplicated tickers (first
// occurrence kept) and dates truncated to midnight UTC
func (c Config) Normalize() Config {
	out := c
	out.Tickers = make([]string, 0, len(c.Tickers))
	seen := make(map[string]struct{}, len(c.Tickers))
	for _, t := range c.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out.Tickers = append(out.Tickers, t)
	}
	out.Benchmark = strings.ToUpper(strings.TrimSpace(c.Benchmark))
	out.Start = series.Day(c.Start)
	out.End = series.Day(c.End)
	if out.FetchConcurrency <= 0 {
		out.FetchConcurrency = 1
	}
	if out.EarningsLimit <= 0 {
		out.EarningsLimit = 240
	}
	return out
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Benchmark == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("benchmark symbol required"))
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("start and end dates required"))
	}
	if c.End.Before(c.Start) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("end date %s is before start date %s",
				c.End.Format(series.DateLayout), c.Start.Format(series.DateLayout)))
	}
	if c.MinHistoryDays < 0 || c.CalendarPadDays < 0 || c.PriceLookbackDays < 0 || c.PriceLookaheadDays < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("day counts cannot be negative"))
	}
	if c.Rule.Kind != DriftThreshold && c.Rule.Kind != AlwaysEnter {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown rule %s", c.Rule.Kind))
	}
	return nil
}

// SignalEnd is the last earnings date eligible for a signal, End minus the
// calendar pad, so that late events are not cut short by the backtest end
func (c Config) SignalEnd() time.Time {
	if c.CalendarPadDays > 0 {
		return c.End.AddDate(0, 0, -c.CalendarPadDays)
	}
	return c.End
}

// PriceWindow is the span of prices requested from the provider
func (c Config) PriceWindow() (time.Time, time.Time) {
	return c.Start.AddDate(0, 0, -c.PriceLookbackDays), c.End.AddDate(0, 0, c.PriceLookaheadDays)
}

// Symbols returns tickers plus the benchmark, sorted and unique
func (c Config) Symbols() []string {
	set := make(map[string]struct{}, len(c.Tickers)+1)
	for _, t := range c.Tickers {
		set[t] = struct{}{}
	}
	set[c.Benchmark] = struct{}{}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
