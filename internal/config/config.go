package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DRIFTLAB_SERVER_PORT
const EnvPrefix = "DRIFTLAB"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Data     DataConfig     `mapstructure:"data"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Mode           string `mapstructure:"mode"`
	APIKey         string `mapstructure:"api_key"`
	JobTTLHours    int    `mapstructure:"job_ttl_hours"`
	MaxJobs        int    `mapstructure:"max_jobs"`
	RunTimeoutMins int    `mapstructure:"run_timeout_minutes"`
}

// StorageConfig selects the artifact archive
type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// DataConfig selects and configures the market data source
type DataConfig struct {
	Source string      `mapstructure:"source"` // "yahoo" or "snapshot"
	Yahoo  YahooConfig `mapstructure:"yahoo"`
}

type YahooConfig struct {
	ChartURL    string        `mapstructure:"chart_url"`
	EarningsURL string        `mapstructure:"earnings_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BacktestConfig holds the default run parameters. Dates are YYYY-MM-DD;
// an empty end date means today.
type BacktestConfig struct {
	Tickers          []string `mapstructure:"tickers"`
	Benchmark        string   `mapstructure:"benchmark"`
	StartDate        string   `mapstructure:"start_date"`
	EndDate          string   `mapstructure:"end_date"`
	Threshold        float64  `mapstructure:"threshold"`
	MinHistoryDays   int      `mapstructure:"min_history_days"`
	CalendarPadDays  int      `mapstructure:"calendar_pad_days"`
	Variant          string   `mapstructure:"variant"`
	EarningsLimit    int      `mapstructure:"earnings_limit"`
	FetchConcurrency int      `mapstructure:"fetch_concurrency"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifyConfig configures run-completion notifications. A notifier is
// enabled when its required fields are set.
type NotifyConfig struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Load reads configuration from file. A .env file in the working directory
// is loaded into the environment first. An empty path loads defaults plus
// environment overrides only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so env overrides apply to keys the
// file leaves out
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("server.run_timeout_minutes", d.Server.RunTimeoutMins)

	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.prefix", "")

	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.yahoo.chart_url", "")
	v.SetDefault("data.yahoo.earnings_url", "")
	v.SetDefault("data.yahoo.user_agent", "")
	v.SetDefault("data.yahoo.timeout", d.Data.Yahoo.Timeout)

	v.SetDefault("backtest.tickers", d.Backtest.Tickers)
	v.SetDefault("backtest.benchmark", d.Backtest.Benchmark)
	v.SetDefault("backtest.start_date", d.Backtest.StartDate)
	v.SetDefault("backtest.end_date", d.Backtest.EndDate)
	v.SetDefault("backtest.threshold", d.Backtest.Threshold)
	v.SetDefault("backtest.min_history_days", d.Backtest.MinHistoryDays)
	v.SetDefault("backtest.calendar_pad_days", d.Backtest.CalendarPadDays)
	v.SetDefault("backtest.variant", d.Backtest.Variant)
	v.SetDefault("backtest.earnings_limit", d.Backtest.EarningsLimit)
	v.SetDefault("backtest.fetch_concurrency", d.Backtest.FetchConcurrency)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			Mode:           "release",
			JobTTLHours:    1,
			MaxJobs:        100,
			RunTimeoutMins: 10,
		},
		Storage: StorageConfig{
			Type: "localfs",
			Path: "./data",
		},
		Data: DataConfig{
			Source: "yahoo",
			Yahoo: YahooConfig{
				Timeout: 10 * time.Second,
			},
		},
		Backtest: BacktestConfig{
			Tickers:          append([]string(nil), backtest.DefaultTickers...),
			Benchmark:        "SPY",
			StartDate:        "2010-01-01",
			Threshold:        0,
			MinHistoryDays:   400,
			CalendarPadDays:  5,
			Variant:          "drift",
			EarningsLimit:    240,
			FetchConcurrency: 4,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxJobs < 0 || c.Server.JobTTLHours < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("job limits cannot be negative"))
	}

	switch c.Storage.Type {
	case "", "localfs":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.s3.bucket required when storage type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	switch c.Data.Source {
	case "", "yahoo", "snapshot":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data source %q", c.Data.Source))
	}

	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notify.telegram needs both bot_token and chat_id"))
	}

	// Backtest validation
	if c.Backtest.MinHistoryDays < 0 || c.Backtest.CalendarPadDays < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_history_days and calendar_pad_days cannot be negative"))
	}
	if _, err := c.Backtest.RunConfig(time.Now()); err != nil {
		return err
	}

	return nil
}

// Archive converts the storage section for archive.New
func (s StorageConfig) Archive() archive.Config {
	return archive.Config{
		Type: s.Type,
		Path: s.Path,
		S3: archive.S3Config{
			Bucket:    s.S3.Bucket,
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Prefix:    s.S3.Prefix,
		},
	}
}

// RunConfig builds the engine configuration. today fills an empty end date.
func (b BacktestConfig) RunConfig(today time.Time) (backtest.Config, error) {
	cfg := backtest.DefaultConfig(today)
	if len(b.Tickers) > 0 {
		cfg.Tickers = append([]string(nil), b.Tickers...)
	}
	if b.Benchmark != "" {
		cfg.Benchmark = b.Benchmark
	}

	if b.StartDate != "" {
		start, err := series.ParseDay(b.StartDate)
		if err != nil {
			return backtest.Config{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("start_date: %w", err))
		}
		cfg.Start = start
	}
	if b.EndDate != "" {
		end, err := series.ParseDay(b.EndDate)
		if err != nil {
			return backtest.Config{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end_date: %w", err))
		}
		cfg.End = end
	}

	kind, err := backtest.ParseVariant(b.Variant)
	if err != nil {
		return backtest.Config{}, err
	}
	cfg.Rule = backtest.SignalRule{Kind: kind, Threshold: b.Threshold}

	cfg.MinHistoryDays = b.MinHistoryDays
	cfg.CalendarPadDays = b.CalendarPadDays
	if b.EarningsLimit > 0 {
		cfg.EarningsLimit = b.EarningsLimit
	}
	if b.FetchConcurrency > 0 {
		cfg.FetchConcurrency = b.FetchConcurrency
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return backtest.Config{}, err
	}
	return cfg, nil
}
