package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/driftlab/internal/api"
	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/logger"
	"github.com/newthinker/driftlab/internal/metrics"
	"github.com/newthinker/driftlab/internal/report"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the driftlab HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Initialize logger
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	store, err := archive.New(cfg.Storage.Archive())
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	notifiers, err := newNotifiers(cfg)
	if err != nil {
		return err
	}

	src, err := selectSource(newSources(cfg, store, log), cfg.Data.Source)
	if err != nil {
		return err
	}
	if reg != nil {
		src = collector.Instrument(src, reg)
	}

	engineOpts := []backtest.Option{backtest.WithLogger(log)}
	if reg != nil {
		engineOpts = append(engineOpts, backtest.WithRecorder(reg))
	}
	engine := backtest.NewEngine(src, src, engineOpts...)

	log.Info("starting driftlab server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("source", src.Name()),
		zap.Int("notifiers", notifiers.Len()),
	)

	// Create API server
	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MaxJobs:     cfg.Server.MaxJobs,
		JobTTL:      time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		RunTimeout:  time.Duration(cfg.Server.RunTimeoutMins) * time.Minute,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{
		Runner:    engine,
		Defaults:  cfg.Backtest,
		Exporter:  report.NewExporter(store, log),
		Metrics:   reg,
		Notifiers: notifiers,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down driftlab server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
