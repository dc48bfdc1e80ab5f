package series

import (
	"math"
	"testing"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pts(closes map[string]float64) []core.PricePoint {
	out := make([]core.PricePoint, 0, len(closes))
	for date, c := range closes {
		day, err := ParseDay(date)
		if err != nil {
			panic(err)
		}
		out = append(out, core.PricePoint{Date: day, Close: c})
	}
	return out
}

func TestNew_SortsAndCleans(t *testing.T) {
	s := New("AAPL", []core.PricePoint{
		{Date: d(2020, 1, 3), Close: 12},
		{Date: d(2020, 1, 1), Close: 10},
		{Date: d(2020, 1, 2), Close: math.NaN()},
		{Date: d(2020, 1, 2), Close: 0},
		{Date: d(2020, 1, 3), Close: 13},
	})

	require.Equal(t, 2, s.Len())
	assert.Equal(t, d(2020, 1, 1), s.First())
	assert.Equal(t, d(2020, 1, 3), s.Last())
	assert.Equal(t, 13.0, s.At(1).Close, "last duplicate should win")
}

func TestSeries_Empty(t *testing.T) {
	var s *Series
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.SpanDays())

	_, ok := New("X", nil).Nearest(d(2020, 1, 1))
	assert.False(t, ok)
	_, ok = New("X", nil).AsOf(d(2020, 1, 1))
	assert.False(t, ok)
}

func TestSeries_Nearest(t *testing.T) {
	s := New("AAPL", pts(map[string]float64{
		"2020-01-06": 1, // Mon
		"2020-01-08": 2, // Wed
		"2020-01-13": 3, // next Mon
	}))

	tests := []struct {
		date string
		want string
	}{
		{"2020-01-01", "2020-01-06"},
		{"2020-01-06", "2020-01-06"},
		{"2020-01-07", "2020-01-06"}, // tie: earlier date wins
		{"2020-01-10", "2020-01-08"},
		{"2020-01-11", "2020-01-13"},
		{"2020-02-01", "2020-01-13"},
	}

	for _, tc := range tests {
		date, _ := ParseDay(tc.date)
		i, ok := s.Nearest(date)
		require.True(t, ok)
		assert.Equal(t, tc.want, s.At(i).Date.Format(DateLayout), "Nearest(%s)", tc.date)
	}
}

func TestSeries_AsOf(t *testing.T) {
	s := New("AAPL", pts(map[string]float64{
		"2020-01-06": 100,
		"2020-01-08": 110,
	}))

	_, ok := s.AsOf(d(2020, 1, 5))
	assert.False(t, ok, "no point at or before date")

	v, ok := s.AsOf(d(2020, 1, 7))
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)

	v, _ = s.AsOf(d(2020, 1, 8))
	assert.Equal(t, 110.0, v)

	v, _ = s.AsOf(d(2021, 1, 1))
	assert.Equal(t, 110.0, v)
}

func TestSeries_Between(t *testing.T) {
	s := New("AAPL", pts(map[string]float64{
		"2020-01-06": 1,
		"2020-01-07": 2,
		"2020-01-08": 3,
		"2020-01-09": 4,
	}))

	got := s.Between(d(2020, 1, 7), d(2020, 1, 8))
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 3.0, got[1].Close)

	assert.Len(t, s.Between(d(2020, 1, 1), d(2020, 12, 31)), 4)
	assert.Empty(t, s.Between(d(2020, 1, 8), d(2020, 1, 7)))
	assert.Empty(t, s.Between(d(2021, 1, 1), d(2021, 2, 1)))
}

func TestSeries_Index(t *testing.T) {
	s := New("AAPL", pts(map[string]float64{"2020-01-06": 1, "2020-01-08": 2}))

	i, ok := s.Index(d(2020, 1, 8))
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = s.Index(d(2020, 1, 7))
	assert.False(t, ok)
}

func TestSeries_SpanDays(t *testing.T) {
	s := New("AAPL", pts(map[string]float64{"2020-01-01": 1, "2021-02-04": 2}))
	assert.Equal(t, 400, s.SpanDays())
}
