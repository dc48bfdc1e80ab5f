package report

import (
	"encoding/json"
	"time"

	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/series"
)

// Document is the JSON form of a run result
type Document struct {
	RunID     string              `json:"run_id,omitempty"`
	Config    ConfigDoc           `json:"config"`
	Stats     backtest.Statistics `json:"stats"`
	Trades    []TradeDoc          `json:"trades"`
	Equity    []EquityDoc         `json:"equity,omitempty"`
	Skipped   []backtest.Skip     `json:"skipped"`
	StartedAt time.Time           `json:"started_at,omitzero"`
	Duration  float64             `json:"duration_seconds"`
}

// ConfigDoc echoes the effective run parameters
type ConfigDoc struct {
	Tickers         []string `json:"tickers"`
	Benchmark       string   `json:"benchmark"`
	Start           string   `json:"start_date"`
	End             string   `json:"end_date"`
	Variant         string   `json:"variant"`
	Threshold       float64  `json:"three_month_signal_threshold"`
	MinHistoryDays  int      `json:"min_price_history_days"`
	CalendarPadDays int      `json:"calendar_pad_days"`
}

// TradeDoc is one ledger row
type TradeDoc struct {
	Ticker       string  `json:"ticker"`
	EarningsDate string  `json:"earn_date"`
	EntryDate    string  `json:"entry_date"`
	ExitDate     string  `json:"exit_date"`
	SignalReturn float64 `json:"r_3m"`
	HoldReturn   float64 `json:"r_hold"`
}

// EquityDoc is one row of the equity curves
type EquityDoc struct {
	Date      string  `json:"date"`
	Strategy  float64 `json:"strategy"`
	Benchmark float64 `json:"benchmark"`
}

// NewDocument converts a result. Equity rows are included only when
// withEquity is set.
func NewDocument(runID string, res *backtest.Result, withEquity bool) Document {
	cfg := res.Config
	doc := Document{
		RunID: runID,
		Config: ConfigDoc{
			Tickers:         cfg.Tickers,
			Benchmark:       cfg.Benchmark,
			Start:           cfg.Start.Format(series.DateLayout),
			End:             cfg.End.Format(series.DateLayout),
			Variant:         cfg.Rule.Variant(),
			Threshold:       cfg.Rule.Threshold,
			MinHistoryDays:  cfg.MinHistoryDays,
			CalendarPadDays: cfg.CalendarPadDays,
		},
		Stats:     res.Stats,
		Trades:    make([]TradeDoc, 0, len(res.Trades)),
		Skipped:   res.Skipped,
		StartedAt: res.StartedAt,
		Duration:  res.Duration.Seconds(),
	}
	if doc.Config.Tickers == nil {
		doc.Config.Tickers = []string{}
	}
	if doc.Skipped == nil {
		doc.Skipped = []backtest.Skip{}
	}

	for _, t := range res.Trades {
		doc.Trades = append(doc.Trades, TradeDoc{
			Ticker:       t.Ticker,
			EarningsDate: formatDate(t.EarningsDate),
			EntryDate:    formatDate(t.EntryDate),
			ExitDate:     formatDate(t.ExitDate),
			SignalReturn: t.SignalReturn,
			HoldReturn:   t.HoldReturn,
		})
	}

	if withEquity {
		for i, p := range res.Equity {
			row := EquityDoc{Date: formatDate(p.Date), Strategy: p.Value, Benchmark: 1}
			if i < len(res.BenchmarkEquity) {
				row.Benchmark = res.BenchmarkEquity[i].Value
			}
			doc.Equity = append(doc.Equity, row)
		}
	}
	return doc
}

// MarshalResult renders the full result, equity included, as indented JSON
func MarshalResult(runID string, res *backtest.Result) ([]byte, error) {
	return json.MarshalIndent(NewDocument(runID, res, true), "", "  ")
}
