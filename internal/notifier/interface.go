package notifier

import (
	"context"
	"time"

	"github.com/newthinker/driftlab/internal/backtest"
)

// Run statuses carried by a Summary
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Summary describes a finished backtest run
type Summary struct {
	RunID     string
	Variant   string
	Tickers   []string
	Benchmark string
	Start     time.Time
	End       time.Time
	Status    string
	Error     string
	Trades    int
	Skipped   int
	Stats     backtest.Statistics
	Duration  time.Duration
}

// NewSummary summarizes a successful run
func NewSummary(runID string, res *backtest.Result) Summary {
	return Summary{
		RunID:     runID,
		Variant:   res.Config.Rule.Variant(),
		Tickers:   res.Config.Tickers,
		Benchmark: res.Config.Benchmark,
		Start:     res.Config.Start,
		End:       res.Config.End,
		Status:    StatusCompleted,
		Trades:    len(res.Trades),
		Skipped:   len(res.Skipped),
		Stats:     res.Stats,
		Duration:  res.Duration,
	}
}

// FailedSummary summarizes a run that returned an error
func FailedSummary(runID string, cfg backtest.Config, err error) Summary {
	return Summary{
		RunID:     runID,
		Variant:   cfg.Rule.Variant(),
		Tickers:   cfg.Tickers,
		Benchmark: cfg.Benchmark,
		Start:     cfg.Start,
		End:       cfg.End,
		Status:    StatusFailed,
		Error:     err.Error(),
	}
}

// Notifier delivers run summaries to an external channel
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify sends one summary
	Notify(ctx context.Context, s Summary) error
}
