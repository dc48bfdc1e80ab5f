package series

import (
	"testing"
	"time"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		in     time.Time
		months int
		want   time.Time
	}{
		{d(2020, 1, 10), 3, d(2020, 4, 10)},
		{d(2020, 1, 10), 12, d(2021, 1, 10)},
		{d(2019, 11, 30), 3, d(2020, 2, 29)},
		{d(2018, 11, 30), 3, d(2019, 2, 28)},
		{d(2020, 2, 29), 12, d(2021, 2, 28)},
		{d(2021, 10, 31), 3, d(2022, 1, 31)},
		{d(2021, 5, 31), 1, d(2021, 6, 30)},
	}

	for _, tc := range tests {
		got := AddMonths(tc.in, tc.months)
		if !got.Equal(tc.want) {
			t.Errorf("AddMonths(%s, %d) = %s, want %s",
				tc.in.Format(DateLayout), tc.months, got.Format(DateLayout), tc.want.Format(DateLayout))
		}
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2020, 1, 10, 14, 30, 0, 0, time.UTC)
	if got := Day(in); !got.Equal(d(2020, 1, 10)) {
		t.Errorf("Day() = %s", got)
	}

	ny := time.FixedZone("EST", -5*3600)
	late := time.Date(2020, 1, 10, 21, 0, 0, 0, ny) // 02:00 UTC next day
	if got := Day(late); !got.Equal(d(2020, 1, 11)) {
		t.Errorf("Day() in UTC = %s, want 2020-01-11", got)
	}
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay("2010-01-01")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !got.Equal(d(2010, 1, 1)) {
		t.Errorf("ParseDay = %s", got)
	}

	if _, err := ParseDay("01/01/2010"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestDaysBetween(t *testing.T) {
	if n := DaysBetween(d(2020, 1, 1), d(2021, 1, 1)); n != 366 {
		t.Errorf("DaysBetween = %d, want 366", n)
	}
}
