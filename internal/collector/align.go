package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
)

// AlignHistory fetches every symbol through f and aligns the results into
// one forward-filled table. Per-symbol failures are returned in the map and
// the symbol is omitted; the error is set only if nothing could be fetched
// or the context was cancelled.
func AlignHistory(ctx context.Context, f HistoryFetcher, symbols []string, start, end time.Time) (*series.Table, map[string]error, error) {
	failed := make(map[string]error)
	all := make([]*series.Series, 0, len(symbols))

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, failed, err
		}

		points, err := f.FetchHistory(ctx, sym, start, end)
		if err != nil {
			failed[sym] = err
			continue
		}

		s := series.New(sym, points)
		if s.Empty() {
			failed[sym] = core.ErrNoData
			continue
		}
		all = append(all, s)
	}

	if len(all) == 0 && len(symbols) > 0 {
		return series.NewTable(), failed, core.WrapError(core.ErrNoData,
			fmt.Errorf("no history for any of %d symbols", len(symbols)))
	}

	return series.NewTable(all...), failed, nil
}
