package core

import (
	"math"
	"time"
)

// PricePoint is one daily adjusted close
type PricePoint struct {
	Date  time.Time
	Close float64
}

// IsValid reports whether the point carries a usable price
func (p PricePoint) IsValid() bool {
	return !p.Date.IsZero() && p.Close > 0 && !math.IsInf(p.Close, 0) && !math.IsNaN(p.Close)
}
