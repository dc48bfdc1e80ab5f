package series

import (
	"sort"
	"time"

	"github.com/newthinker/driftlab/internal/core"
)

// Series is an ordered run of daily closes for one symbol, strictly
// increasing by date.
type Series struct {
	Symbol string
	points []core.PricePoint
}

// New builds a series from unordered points. Dates are truncated to the
// day, invalid closes are dropped and the last point wins on duplicate dates.
func New(symbol string, points []core.PricePoint) *Series {
	clean := make([]core.PricePoint, 0, len(points))
	for _, p := range points {
		p.Date = Day(p.Date)
		if !p.IsValid() {
			continue
		}
		clean = append(clean, p)
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Date.Before(clean[j].Date)
	})

	out := clean[:0]
	for _, p := range clean {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}

	return &Series{Symbol: symbol, points: out}
}

// Len returns the number of points
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// Empty reports whether the series has no points
func (s *Series) Empty() bool {
	return s.Len() == 0
}

// At returns the i-th point
func (s *Series) At(i int) core.PricePoint {
	return s.points[i]
}

// Points returns a copy of the underlying points
func (s *Series) Points() []core.PricePoint {
	out := make([]core.PricePoint, s.Len())
	if s != nil {
		copy(out, s.points)
	}
	return out
}

// First returns the earliest date, zero for an empty series
func (s *Series) First() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.points[0].Date
}

// Last returns the latest date, zero for an empty series
func (s *Series) Last() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.points[len(s.points)-1].Date
}

// SpanDays is the calendar distance between the first and last point
func (s *Series) SpanDays() int {
	if s.Empty() {
		return 0
	}
	return DaysBetween(s.First(), s.Last())
}

// search returns the index of the first point not before date
func (s *Series) search(date time.Time) int {
	return sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Date.Before(date)
	})
}

// Index returns the position of an exact date
func (s *Series) Index(date time.Time) (int, bool) {
	if s.Empty() {
		return 0, false
	}
	i := s.search(date)
	if i < len(s.points) && s.points[i].Date.Equal(date) {
		return i, true
	}
	return 0, false
}

// Nearest returns the index of the point closest to date. When two points
// are equally distant the earlier one wins.
func (s *Series) Nearest(date time.Time) (int, bool) {
	if s.Empty() {
		return 0, false
	}

	i := s.search(date)
	switch {
	case i == 0:
		return 0, true
	case i == len(s.points):
		return i - 1, true
	}

	before := date.Sub(s.points[i-1].Date)
	after := s.points[i].Date.Sub(date)
	if after < before {
		return i, true
	}
	return i - 1, true
}

// AsOf returns the close of the last point at or before date
func (s *Series) AsOf(date time.Time) (float64, bool) {
	if s.Empty() {
		return 0, false
	}
	i := s.search(date)
	if i < len(s.points) && s.points[i].Date.Equal(date) {
		return s.points[i].Close, true
	}
	if i == 0 {
		return 0, false
	}
	return s.points[i-1].Close, true
}

// Between returns the points with from <= date <= to
func (s *Series) Between(from, to time.Time) []core.PricePoint {
	if s.Empty() || to.Before(from) {
		return nil
	}
	lo := s.search(from)
	hi := s.search(to)
	if hi < len(s.points) && s.points[hi].Date.Equal(to) {
		hi++
	}
	if lo >= hi {
		return nil
	}
	out := make([]core.PricePoint, hi-lo)
	copy(out, s.points[lo:hi])
	return out
}
