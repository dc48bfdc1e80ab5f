package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/newthinker/driftlab/internal/collector/snapshot"
	"github.com/newthinker/driftlab/internal/logger"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"github.com/spf13/cobra"
)

var (
	snapTickers []string
	snapFrom    string
	snapTo      string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture prices and earnings dates into storage",
	Long: `Download prices and earnings dates from Yahoo Finance and store them
as CSV files, so later runs can use --source snapshot offline and
reproducibly.`,
	RunE: runSnapshot,
}

func init() {
	f := snapshotCmd.Flags()
	f.StringSliceVar(&snapTickers, "tickers", nil, "comma separated tickers (default from config)")
	f.StringVar(&snapFrom, "from", "", "start date YYYY-MM-DD (default from config)")
	f.StringVar(&snapTo, "to", "", "end date YYYY-MM-DD (default today)")

	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	log, err := logger.ForCLI(debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b := cfg.Backtest
	if cmd.Flags().Changed("tickers") {
		b.Tickers = snapTickers
	}
	if cmd.Flags().Changed("from") {
		b.StartDate = snapFrom
	}
	if cmd.Flags().Changed("to") {
		b.EndDate = snapTo
	}
	runCfg, err := b.RunConfig(time.Now())
	if err != nil {
		return err
	}

	store, err := archive.New(cfg.Storage.Archive())
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	from, to := runCfg.PriceWindow()
	res, err := snapshot.Capture(ctx, newYahoo(cfg, log), store, runCfg.Symbols(), from, to, runCfg.EarningsLimit, log)
	if err != nil {
		return err
	}

	fmt.Printf("Captured prices for %d symbols, earnings for %d\n", len(res.Prices), len(res.Earnings))
	failed := make([]string, 0, len(res.Failed))
	for sym := range res.Failed {
		failed = append(failed, sym)
	}
	sort.Strings(failed)
	for _, sym := range failed {
		fmt.Printf("  %s: %s\n", sym, res.Failed[sym])
	}
	return nil
}
