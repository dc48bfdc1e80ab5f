// Package snapshot serves prices and earnings dates from CSV files kept in
// archive storage, so a run can be repeated offline against frozen data.
//
// Layout:
//
//	prices/<SYMBOL>.csv    date,close
//	earnings/<SYMBOL>.csv  date
package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"go.uber.org/zap"
)

func pricePath(symbol string) string    { return "prices/" + symbol + ".csv" }
func earningsPath(symbol string) string { return "earnings/" + symbol + ".csv" }

// Provider implements collector.Source over an archive.Storage
type Provider struct {
	store  archive.Storage
	logger *zap.Logger
}

// New creates a snapshot provider
func New(store archive.Storage, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{store: store, logger: logger}
}

func (p *Provider) Name() string {
	return "snapshot"
}

// FetchPrices reads each symbol's snapshot and aligns them
func (p *Provider) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*series.Table, error) {
	tbl, failed, err := collector.AlignHistory(ctx, p, symbols, start, end)
	for sym, ferr := range failed {
		p.logger.Warn("snapshot prices unavailable",
			zap.String("symbol", sym),
			zap.Error(ferr),
		)
	}
	return tbl, err
}

// FetchHistory returns the snapshot closes of symbol within [start, end]
func (p *Provider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.PricePoint, error) {
	records, err := p.readCSV(ctx, pricePath(symbol))
	if err != nil {
		return nil, err
	}

	start, end = series.Day(start), series.Day(end)
	points := make([]core.PricePoint, 0, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s line %d: expected date,close", pricePath(symbol), i+2)
		}
		day, err := series.ParseDay(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", pricePath(symbol), i+2, err)
		}
		if day.Before(start) || day.After(end) {
			continue
		}
		px, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", pricePath(symbol), i+2, err)
		}
		points = append(points, core.PricePoint{Date: day, Close: px})
	}
	return points, nil
}

// FetchEarningsDates returns up to limit snapshot dates, most recent first
func (p *Provider) FetchEarningsDates(ctx context.Context, symbol string, limit int) ([]time.Time, error) {
	records, err := p.readCSV(ctx, earningsPath(symbol))
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(records))
	for i, rec := range records {
		day, err := series.ParseDay(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", earningsPath(symbol), i+2, err)
		}
		dates = append(dates, day)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

// readCSV loads a snapshot file and drops its header row
func (p *Provider) readCSV(ctx context.Context, path string) ([][]string, error) {
	data, err := p.store.Read(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no snapshot at %s", path))
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
