package series

import "time"

// DateLayout is the ISO calendar date format used across configs, CSVs and APIs
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date as midnight UTC
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// AddMonths adds n calendar months, clamping the day to the end of the
// target month (Nov 30 + 3 months = Feb 28, or Feb 29 in a leap year).
// time.AddDate would roll the overflow into the following month instead.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysBetween returns the number of whole days from a to b
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
