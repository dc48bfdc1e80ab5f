package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/driftlab/internal/backtest"
)

// Row is one labeled metric of the summary table
type Row struct {
	Metric string
	Value  string
}

// StatsRows formats the summary metrics in display order
func StatsRows(s backtest.Statistics) []Row {
	return []Row{
		{"trades", strconv.Itoa(s.Trades)},
		{"win rate", formatPercent(s.WinRate)},
		{"average trade return", formatPercent(s.AvgTradeReturn)},
		{"median trade return", formatPercent(s.MedianTradeReturn)},
		{"strategy CAGR", formatPercent(s.StrategyCAGR)},
		{"benchmark CAGR", formatPercent(s.BenchmarkCAGR)},
		{"strategy Sharpe", formatRatio(s.StrategySharpe)},
		{"benchmark Sharpe", formatRatio(s.BenchmarkSharpe)},
		{"strategy max drawdown", formatPercent(s.StrategyMaxDrawdown)},
		{"benchmark max drawdown", formatPercent(s.BenchmarkMaxDrawdown)},
	}
}

// Column is one named set of statistics in a comparison table
type Column struct {
	Name  string
	Stats backtest.Statistics
}

// WriteStatsTable writes an aligned metric table with one value column per
// entry in cols
func WriteStatsTable(w io.Writer, cols ...Column) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"metric"}
	rows := make([][]Row, len(cols))
	for i, c := range cols {
		header = append(header, c.Name)
		rows[i] = StatsRows(c.Stats)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	if len(cols) > 0 {
		for r := range rows[0] {
			line := []string{rows[0][r].Metric}
			for c := range cols {
				line = append(line, rows[c][r].Value)
			}
			fmt.Fprintln(tw, strings.Join(line, "\t"))
		}
	}
	return tw.Flush()
}

// WriteTradesTable writes the ledger as an aligned text table
func WriteTradesTable(w io.Writer, ledger backtest.Ledger) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tEARNINGS\tENTRY\tEXIT\tR_3M\tR_HOLD")
	for _, t := range ledger {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Ticker,
			formatDate(t.EarningsDate),
			formatDate(t.EntryDate),
			formatDate(t.ExitDate),
			formatPercent(t.SignalReturn),
			formatPercent(t.HoldReturn),
		)
	}
	return tw.Flush()
}

// WriteSkipSummary writes the count of skips per reason, in first-seen order
func WriteSkipSummary(w io.Writer, skipped []backtest.Skip) error {
	if len(skipped) == 0 {
		return nil
	}
	var order []backtest.SkipReason
	counts := make(map[backtest.SkipReason]int)
	for _, s := range skipped {
		if _, ok := counts[s.Reason]; !ok {
			order = append(order, s.Reason)
		}
		counts[s.Reason]++
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKIPPED\tCOUNT")
	for _, r := range order {
		fmt.Fprintf(tw, "%s\t%d\n", r, counts[r])
	}
	return tw.Flush()
}
