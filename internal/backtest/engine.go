package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/series"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder receives run telemetry. metrics.Registry implements it.
type Recorder interface {
	RecordRun(variant, status string, seconds float64)
	RecordSkip(reason string)
	RecordTrades(variant string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, string, float64) {}
func (nopRecorder) RecordSkip(string)                 {}
func (nopRecorder) RecordTrades(string, int)          {}

// Engine runs earnings drift backtests against a price and an earnings
// provider
type Engine struct {
	prices   collector.PriceProvider
	earnings collector.EarningsProvider
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the telemetry sink
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides the clock used to stamp results
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine
func NewEngine(prices collector.PriceProvider, earnings collector.EarningsProvider, opts ...Option) *Engine {
	e := &Engine{
		prices:   prices,
		earnings: earnings,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one backtest. It fails only on an invalid configuration or
// a cancelled context; missing data degrades to skipped tickers and an
// all-cash curve.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.Normalize()
	started := e.now()
	variant := cfg.Rule.Variant()

	if err := cfg.Validate(); err != nil {
		e.recorder.RecordRun(variant, "invalid", 0)
		return nil, err
	}

	res, err := e.run(ctx, cfg)
	elapsed := e.now().Sub(started)
	if err != nil {
		e.recorder.RecordRun(variant, "cancelled", elapsed.Seconds())
		return nil, err
	}

	res.StartedAt = started
	res.Duration = elapsed

	e.recorder.RecordRun(variant, "ok", elapsed.Seconds())
	e.recorder.RecordTrades(variant, len(res.Trades))
	for _, s := range res.Skipped {
		e.recorder.RecordSkip(string(s.Reason))
	}

	e.logger.Info("backtest complete",
		zap.String("variant", variant),
		zap.Int("tickers", len(cfg.Tickers)),
		zap.Int("trades", res.Stats.Trades),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, cfg Config) (*Result, error) {
	table, err := e.fetchPrices(ctx, cfg)
	if err != nil {
		return nil, err
	}

	earnings, fetchErrs, err := e.fetchEarnings(ctx, cfg, table)
	if err != nil {
		return nil, err
	}

	ledger, skipped := GenerateTrades(table, earnings, cfg)
	for i, s := range skipped {
		if s.Reason != SkipNoEarnings {
			continue
		}
		if ferr, ok := fetchErrs[s.Ticker]; ok {
			skipped[i].Reason = SkipEarningsFetch
			skipped[i].Detail = ferr.Error()
		}
	}
	for _, s := range skipped {
		e.logger.Debug("skipped",
			zap.String("ticker", s.Ticker),
			zap.String("reason", string(s.Reason)),
			zap.Time("date", s.Date),
		)
	}

	index := CanonicalIndex(table, cfg.Start, cfg.End)
	equity := StrategyEquity(table, ledger, index)
	bench := BenchmarkEquity(table, cfg.Benchmark, index)

	return &Result{
		Config:          cfg,
		Stats:           ComputeStatistics(ledger, equity, bench),
		Trades:          ledger,
		Equity:          equity,
		BenchmarkEquity: bench,
		Skipped:         skipped,
	}, nil
}

// fetchPrices loads the shared price table. A provider failure leaves an
// empty table so the run still completes.
func (e *Engine) fetchPrices(ctx context.Context, cfg Config) (*series.Table, error) {
	from, to := cfg.PriceWindow()
	table, err := e.prices.FetchPrices(ctx, cfg.Symbols(), from, to)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.Warn("price fetch failed, continuing without prices", zap.Error(err))
	}
	if table == nil {
		table = series.NewTable()
	}
	return table, nil
}

// fetchEarnings loads announcement dates for every ticker with usable
// history, at most cfg.FetchConcurrency at a time. Each result lands in the
// ticker's own slot so completion order never leaks into the output.
func (e *Engine) fetchEarnings(ctx context.Context, cfg Config, table *series.Table) (map[string][]time.Time, map[string]error, error) {
	type slot struct {
		dates []time.Time
		err   error
	}
	slots := make([]slot, len(cfg.Tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.FetchConcurrency)

	for i, ticker := range cfg.Tickers {
		if _, _, ok := checkHistory(table, ticker, cfg.MinHistoryDays); !ok {
			continue
		}
		g.Go(func() error {
			dates, err := e.safeFetchEarnings(gctx, ticker, cfg.EarningsLimit)
			slots[i] = slot{dates: dates, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	earnings := make(map[string][]time.Time, len(cfg.Tickers))
	failed := make(map[string]error)
	for i, ticker := range cfg.Tickers {
		if slots[i].err != nil {
			failed[ticker] = slots[i].err
			e.logger.Warn("earnings fetch failed",
				zap.String("ticker", ticker),
				zap.Error(slots[i].err),
			)
			continue
		}
		earnings[ticker] = NormalizeEarnings(slots[i].dates, cfg.Start, cfg.SignalEnd())
	}
	return earnings, failed, nil
}

// safeFetchEarnings converts a provider panic into an error so one bad
// ticker cannot take down the run
func (e *Engine) safeFetchEarnings(ctx context.Context, ticker string, limit int) (dates []time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("earnings provider panic: %v", r)
		}
	}()
	return e.earnings.FetchEarningsDates(ctx, ticker, limit)
}
