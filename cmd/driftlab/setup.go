package main

import (
	"fmt"

	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/collector/snapshot"
	"github.com/newthinker/driftlab/internal/collector/yahoo"
	"github.com/newthinker/driftlab/internal/config"
	"github.com/newthinker/driftlab/internal/notifier"
	"github.com/newthinker/driftlab/internal/notifier/telegram"
	"github.com/newthinker/driftlab/internal/notifier/webhook"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"go.uber.org/zap"
)

// loadConfig reads --config when given, otherwise defaults plus env
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newSources registers every market data backend. The snapshot backend is
// only available when storage can be opened.
func newSources(cfg *config.Config, store archive.Storage, log *zap.Logger) *collector.Registry {
	reg := collector.NewRegistry()
	reg.Register(newYahoo(cfg, log))
	if store != nil {
		reg.Register(snapshot.New(store, log))
	}
	return reg
}

func newYahoo(cfg *config.Config, log *zap.Logger) *yahoo.Client {
	return yahoo.New(yahoo.Config{
		ChartURL:    cfg.Data.Yahoo.ChartURL,
		EarningsURL: cfg.Data.Yahoo.EarningsURL,
		UserAgent:   cfg.Data.Yahoo.UserAgent,
		Timeout:     cfg.Data.Yahoo.Timeout,
	}, yahoo.WithLogger(log))
}

// selectSource picks the named source, falling back to the config default
func selectSource(reg *collector.Registry, name string) (collector.Source, error) {
	src, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown data source %q (available: %v)", name, reg.Names())
	}
	return src, nil
}

// newNotifiers builds the configured run-completion notifiers
func newNotifiers(cfg *config.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	if n := cfg.Notify.Webhook; n.URL != "" {
		w, err := webhook.New(n.URL, n.Headers)
		if err != nil {
			return nil, err
		}
		reg.Register(w)
	}
	if n := cfg.Notify.Telegram; n.BotToken != "" {
		tg, err := telegram.New(n.BotToken, n.ChatID)
		if err != nil {
			return nil, err
		}
		reg.Register(tg)
	}
	return reg, nil
}
