package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/series"
	"go.uber.org/zap"
)

const (
	DefaultChartURL    = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultEarningsURL = "https://query1.finance.yahoo.com/v1/finance/visualization"
	DefaultUserAgent   = "Mozilla/5.0 (compatible; driftlab/1.0)"
)

// validSymbol matches symbols like AAPL, BRK-B, ^GSPC, 0700.HK, 600519.SH
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Config holds endpoint and transport settings
type Config struct {
	ChartURL    string
	EarningsURL string
	UserAgent   string
	Timeout     time.Duration
}

// Client implements collector.Source against Yahoo Finance
type Client struct {
	client *http.Client
	config Config
	logger *zap.Logger
	market *time.Location
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger used for per-symbol failures
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Yahoo client. Empty config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.ChartURL == "" {
		cfg.ChartURL = DefaultChartURL
	}
	if cfg.EarningsURL == "" {
		cfg.EarningsURL = DefaultEarningsURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: zap.NewNop(),
		market: newYorkLocation(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchPrices fetches every symbol and aligns them into one table
func (c *Client) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*series.Table, error) {
	tbl, failed, err := collector.AlignHistory(ctx, c, symbols, start, end)
	for sym, ferr := range failed {
		c.logger.Warn("price history unavailable",
			zap.String("symbol", sym),
			zap.Error(ferr),
		)
	}
	return tbl, err
}

// FetchHistory fetches adjusted daily closes for one symbol
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.PricePoint, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d&events=div%%7Csplit&includeAdjustedClose=true",
		c.config.ChartURL, toYahooSymbol(symbol), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, requestError("fetching history", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("chart: %s", symbol))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	return c.parseChart(result.Chart.Result[0]), nil
}

// requestError classifies a failed round trip
func requestError(what string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return core.WrapError(core.ErrCollectorTimeout, fmt.Errorf("%s: %w", what, err))
	}
	return core.WrapError(core.ErrCollectorFailed, fmt.Errorf("%s: %w", what, err))
}

// parseChart prefers the split/dividend adjusted close and falls back to
// the raw close when Yahoo omits it
func (c *Client) parseChart(r chartResult) []core.PricePoint {
	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}

	data := make([]core.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // Skip missing data
		}
		data = append(data, core.PricePoint{
			Date:  c.tradingDay(time.Unix(ts, 0)),
			Close: *closes[i],
		})
	}
	return data
}

// tradingDay maps an exchange timestamp to its local calendar date
func (c *Client) tradingDay(t time.Time) time.Time {
	y, m, d := t.In(c.market).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newYorkLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Yahoo chart API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol       string `json:"symbol"`
	Currency     string `json:"currency"`
	ExchangeName string `json:"exchangeName"`
}

type indicators struct {
	Quote    []quoteIndicator    `json:"quote"`
	AdjClose []adjCloseIndicator `json:"adjclose"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}

type adjCloseIndicator struct {
	AdjClose []*float64 `json:"adjclose"`
}
