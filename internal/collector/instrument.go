package collector

import (
	"context"
	"time"

	"github.com/newthinker/driftlab/internal/series"
)

// FetchRecorder counts fetches per source. metrics.Registry implements it.
type FetchRecorder interface {
	RecordFetch(source, kind string, err error)
}

// Instrument wraps src so every fetch is reported to rec
func Instrument(src Source, rec FetchRecorder) Source {
	if rec == nil {
		return src
	}
	return &instrumented{Source: src, rec: rec}
}

type instrumented struct {
	Source
	rec FetchRecorder
}

func (i *instrumented) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*series.Table, error) {
	table, err := i.Source.FetchPrices(ctx, symbols, start, end)
	i.rec.RecordFetch(i.Name(), "prices", err)
	return table, err
}

func (i *instrumented) FetchEarningsDates(ctx context.Context, symbol string, limit int) ([]time.Time, error) {
	dates, err := i.Source.FetchEarningsDates(ctx, symbol, limit)
	i.rec.RecordFetch(i.Name(), "earnings", err)
	return dates, err
}
