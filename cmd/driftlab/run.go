package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/logger"
	"github.com/newthinker/driftlab/internal/notifier"
	"github.com/newthinker/driftlab/internal/report"
	"github.com/newthinker/driftlab/internal/series"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runTickers    []string
	runBenchmark  string
	runFrom       string
	runTo         string
	runThreshold  float64
	runMinHistory int
	runPad        int
	runVariant    string
	runCompare    bool
	runSource     string
	runExport     bool
	runTrades     bool
	runJSON       bool
	runNotify     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an earnings drift backtest",
	Long: `Fetch prices and earnings dates, generate drift trades and report
the strategy against the benchmark. Flags override the backtest section of
the config file.`,
	Example: `  driftlab run --tickers AAPL,MSFT --from 2015-01-01 --threshold 0.05
  driftlab run --compare --trades`,
	RunE: runBacktest,
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&runTickers, "tickers", nil, "comma separated tickers")
	f.StringVar(&runBenchmark, "benchmark", "", "benchmark symbol")
	f.StringVar(&runFrom, "from", "", "start date YYYY-MM-DD")
	f.StringVar(&runTo, "to", "", "end date YYYY-MM-DD (default today)")
	f.Float64Var(&runThreshold, "threshold", 0, "minimum three-month return to enter")
	f.IntVar(&runMinHistory, "min-history", 0, "minimum price history in calendar days")
	f.IntVar(&runPad, "pad", 0, "calendar days before the end date excluded from signals")
	f.StringVar(&runVariant, "variant", "", "drift or baseline")
	f.BoolVar(&runCompare, "compare", false, "run drift and baseline side by side")
	f.StringVar(&runSource, "source", "", "data source: yahoo or snapshot")
	f.BoolVar(&runExport, "export", false, "write trades, equity and result artifacts to storage")
	f.BoolVar(&runTrades, "trades", false, "print the trade ledger")
	f.BoolVar(&runJSON, "json", false, "print the result as JSON instead of tables")
	f.BoolVar(&runNotify, "notify", false, "send run summaries to the configured notifiers")

	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log, err := logger.ForCLI(debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags override the config file
	b := cfg.Backtest
	flags := cmd.Flags()
	if flags.Changed("tickers") {
		b.Tickers = runTickers
	}
	if flags.Changed("benchmark") {
		b.Benchmark = runBenchmark
	}
	if flags.Changed("from") {
		b.StartDate = runFrom
	}
	if flags.Changed("to") {
		b.EndDate = runTo
	}
	if flags.Changed("threshold") {
		b.Threshold = runThreshold
	}
	if flags.Changed("min-history") {
		b.MinHistoryDays = runMinHistory
	}
	if flags.Changed("pad") {
		b.CalendarPadDays = runPad
	}
	if flags.Changed("variant") {
		b.Variant = runVariant
	}

	runCfg, err := b.RunConfig(time.Now())
	if err != nil {
		return err
	}

	store, err := archive.New(cfg.Storage.Archive())
	if err != nil {
		if runExport {
			return fmt.Errorf("opening storage: %w", err)
		}
		log.Warn("storage unavailable", zap.Error(err))
		store = nil
	}

	sourceName := cfg.Data.Source
	if flags.Changed("source") {
		sourceName = runSource
	}
	src, err := selectSource(newSources(cfg, store, log), sourceName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := backtest.NewEngine(src, src, backtest.WithLogger(log))

	variants := []backtest.Config{runCfg}
	if runCompare {
		drift, base := runCfg, runCfg
		drift.Rule = backtest.DriftRule(runCfg.Rule.Threshold)
		base.Rule = backtest.BaselineRule()
		variants = []backtest.Config{drift, base}
	}

	results := make([]*backtest.Result, 0, len(variants))
	for _, v := range variants {
		res, err := engine.Run(ctx, v)
		if err != nil {
			return fmt.Errorf("%s run: %w", v.Rule.Variant(), err)
		}
		results = append(results, res)
	}

	runIDs := make([]string, len(results))
	for i := range results {
		runIDs[i] = report.NewRunID()
	}

	if runExport {
		exporter := report.NewExporter(store, log)
		for i, res := range results {
			paths, err := exporter.Export(ctx, runIDs[i], res)
			if err != nil {
				return fmt.Errorf("exporting %s: %w", res.Config.Rule.Variant(), err)
			}
			fmt.Fprintf(os.Stderr, "exported %s run %s (%d files)\n", res.Config.Rule.Variant(), runIDs[i], len(paths))
		}
	}

	if runNotify {
		notifiers, err := newNotifiers(cfg)
		if err != nil {
			return err
		}
		for i, res := range results {
			for name, err := range notifiers.NotifyAll(ctx, notifier.NewSummary(runIDs[i], res)) {
				log.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
			}
		}
	}

	if runJSON {
		return printJSON(results)
	}
	return printResults(results)
}

func printJSON(results []*backtest.Result) error {
	docs := make([]report.Document, len(results))
	for i, res := range results {
		docs[i] = report.NewDocument("", res, false)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(docs) == 1 {
		return enc.Encode(docs[0])
	}
	return enc.Encode(docs)
}

func printResults(results []*backtest.Result) error {
	first := results[0].Config
	fmt.Println("=== driftlab backtest ===")
	fmt.Printf("Tickers:   %v\n", first.Tickers)
	fmt.Printf("Benchmark: %s\n", first.Benchmark)
	fmt.Printf("Period:    %s to %s\n", first.Start.Format(series.DateLayout), first.End.Format(series.DateLayout))
	fmt.Printf("Threshold: %.2f%%\n", first.Rule.Threshold*100)
	fmt.Println()

	cols := make([]report.Column, len(results))
	for i, res := range results {
		cols[i] = report.Column{Name: res.Config.Rule.Variant(), Stats: res.Stats}
	}
	if err := report.WriteStatsTable(os.Stdout, cols...); err != nil {
		return err
	}

	for _, res := range results {
		if runTrades {
			fmt.Printf("\n--- %s trades ---\n", res.Config.Rule.Variant())
			if err := report.WriteTradesTable(os.Stdout, res.Trades); err != nil {
				return err
			}
		}
		if len(res.Skipped) > 0 {
			fmt.Println()
			if err := report.WriteSkipSummary(os.Stdout, res.Skipped); err != nil {
				return err
			}
		}
	}
	return nil
}
