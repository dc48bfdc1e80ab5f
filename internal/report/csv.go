// Package report renders backtest results as CSV, text tables and JSON,
// and exports them as run artifacts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/series"
)

// TradeColumns is the header of the trade ledger CSV
var TradeColumns = []string{"ticker", "earn_date", "entry_date", "exit_date", "r_3m", "r_hold"}

// EquityColumns is the header of the equity curve CSV
var EquityColumns = []string{"date", "strategy", "benchmark"}

// WriteTradesCSV writes the ledger with one row per trade
func WriteTradesCSV(w io.Writer, ledger backtest.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeColumns); err != nil {
		return err
	}
	for _, t := range ledger {
		row := []string{
			t.Ticker,
			formatDate(t.EarningsDate),
			formatDate(t.EntryDate),
			formatDate(t.ExitDate),
			formatFloat(t.SignalReturn),
			formatFloat(t.HoldReturn),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the strategy and benchmark curves side by side.
// The curves share the run's canonical index; a date missing from the
// benchmark is written as an empty cell.
func WriteEquityCSV(w io.Writer, strategy, benchmark backtest.EquityCurve) error {
	bench := make(map[time.Time]float64, len(benchmark))
	for _, p := range benchmark {
		bench[p.Date] = p.Value
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(EquityColumns); err != nil {
		return err
	}
	for _, p := range strategy {
		b := ""
		if v, ok := bench[p.Date]; ok {
			b = formatFloat(v)
		}
		if err := cw.Write([]string{formatDate(p.Date), formatFloat(p.Value), b}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time) string {
	return t.Format(series.DateLayout)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatPercent renders a ratio as a percentage with two decimals
func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatRatio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
