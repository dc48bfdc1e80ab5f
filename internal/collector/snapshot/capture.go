package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/series"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"go.uber.org/zap"
)

// CaptureResult summarizes what a capture wrote
type CaptureResult struct {
	Prices   []string
	Earnings []string
	Failed   map[string]string
}

// Capture copies prices and earnings dates for symbols from a live source
// into store using the snapshot layout. Symbols that fail are recorded in
// the result and do not stop the capture.
func Capture(ctx context.Context, src collector.Source, store archive.Storage, symbols []string, start, end time.Time, limit int, logger *zap.Logger) (*CaptureResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &CaptureResult{Failed: make(map[string]string)}

	tbl, err := src.FetchPrices(ctx, symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if tbl.Has(sym) {
			if err := store.Write(ctx, pricePath(sym), encodePrices(tbl.Column(sym))); err != nil {
				return res, fmt.Errorf("writing %s: %w", pricePath(sym), err)
			}
			res.Prices = append(res.Prices, sym)
		} else {
			res.Failed[sym] = "no prices"
		}

		dates, err := src.FetchEarningsDates(ctx, sym, limit)
		if err != nil {
			logger.Warn("earnings capture failed", zap.String("symbol", sym), zap.Error(err))
			res.Failed[sym] = err.Error()
			continue
		}
		if err := store.Write(ctx, earningsPath(sym), encodeDates(dates)); err != nil {
			return res, fmt.Errorf("writing %s: %w", earningsPath(sym), err)
		}
		res.Earnings = append(res.Earnings, sym)
	}

	logger.Info("snapshot captured",
		zap.Int("prices", len(res.Prices)),
		zap.Int("earnings", len(res.Earnings)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func encodePrices(s *series.Series) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"date", "close"})
	for _, p := range s.Points() {
		w.Write([]string{p.Date.Format(series.DateLayout), strconv.FormatFloat(p.Close, 'f', -1, 64)})
	}
	w.Flush()
	return buf.Bytes()
}

func encodeDates(dates []time.Time) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"date"})
	for _, d := range dates {
		w.Write([]string{series.Day(d).Format(series.DateLayout)})
	}
	w.Flush()
	return buf.Bytes()
}
