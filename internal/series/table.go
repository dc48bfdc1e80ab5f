package series

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/driftlab/internal/core"
)

// Table aligns several symbols onto the union of their dates. Each column
// is forward-filled; dates before a symbol's first quote hold NaN.
type Table struct {
	dates   []time.Time
	columns map[string][]float64
}

// NewTable aligns the given series. Empty series are ignored.
func NewTable(all ...*Series) *Table {
	seen := make(map[time.Time]struct{})
	for _, s := range all {
		for _, p := range s.Points() {
			seen[p.Date] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	t := &Table{
		dates:   dates,
		columns: make(map[string][]float64, len(all)),
	}

	for _, s := range all {
		if s.Empty() {
			continue
		}
		col := make([]float64, len(dates))
		j := 0
		last := math.NaN()
		for i, d := range dates {
			if j < s.Len() && s.At(j).Date.Equal(d) {
				last = s.At(j).Close
				j++
			}
			col[i] = last
		}
		t.columns[s.Symbol] = col
	}

	return t
}

// Dates returns a copy of the aligned date index
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// Len returns the number of dates in the table
func (t *Table) Len() int {
	return len(t.dates)
}

// Last returns the latest date in the table
func (t *Table) Last() time.Time {
	if len(t.dates) == 0 {
		return time.Time{}
	}
	return t.dates[len(t.dates)-1]
}

// Has reports whether the table carries a column for symbol
func (t *Table) Has(symbol string) bool {
	_, ok := t.columns[symbol]
	return ok
}

// Symbols returns the column names in sorted order
func (t *Table) Symbols() []string {
	out := make([]string, 0, len(t.columns))
	for s := range t.columns {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Value returns the forward-filled close of symbol on the i-th date
func (t *Table) Value(symbol string, i int) (float64, bool) {
	col, ok := t.columns[symbol]
	if !ok || i < 0 || i >= len(col) || math.IsNaN(col[i]) {
		return 0, false
	}
	return col[i], true
}

// Column returns the forward-filled column for symbol, starting at its
// first quote. Returns an empty series for an unknown symbol.
func (t *Table) Column(symbol string) *Series {
	col, ok := t.columns[symbol]
	if !ok {
		return &Series{Symbol: symbol}
	}
	points := make([]core.PricePoint, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		points = append(points, core.PricePoint{Date: t.dates[i], Close: v})
	}
	return &Series{Symbol: symbol, points: points}
}
