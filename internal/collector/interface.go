package collector

import (
	"context"
	"time"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
)

// PriceProvider supplies adjusted daily closes for a set of symbols,
// aligned by date and forward-filled. Symbols that cannot be fetched are
// left out of the table rather than failing the call.
type PriceProvider interface {
	FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*series.Table, error)
}

// EarningsProvider supplies the announcement history of a symbol, most
// recent first, bounded by limit.
type EarningsProvider interface {
	FetchEarningsDates(ctx context.Context, symbol string, limit int) ([]time.Time, error)
}

// HistoryFetcher fetches the raw daily history of one symbol
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.PricePoint, error)
}

// Source is a named market data backend serving both prices and earnings
type Source interface {
	Name() string
	PriceProvider
	EarningsProvider
}
