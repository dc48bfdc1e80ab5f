package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/driftlab/internal/notifier"
	"github.com/newthinker/driftlab/internal/series"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram sends run summaries through the Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiURL:   defaultAPIURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Notify(ctx context.Context, s notifier.Summary) error {
	return t.sendMessage(ctx, formatSummary(s))
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func ratio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatSummary(s notifier.Summary) string {
	var sb strings.Builder

	period := s.Start.Format(series.DateLayout) + " to " + s.End.Format(series.DateLayout)
	if s.Status == notifier.StatusFailed {
		sb.WriteString(fmt.Sprintf("❌ *%s backtest failed*\n", s.Variant))
		sb.WriteString(fmt.Sprintf("📅 %s\n", period))
		sb.WriteString(fmt.Sprintf("💡 %s", s.Error))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("📊 *%s backtest*\n", s.Variant))
	sb.WriteString(fmt.Sprintf("📅 %s\n", period))
	sb.WriteString(fmt.Sprintf("🎯 %d trades, %d skipped\n", s.Trades, s.Skipped))
	sb.WriteString(fmt.Sprintf("✅ Win rate: %s, avg %s\n", pct(s.Stats.WinRate), pct(s.Stats.AvgTradeReturn)))
	sb.WriteString(fmt.Sprintf("📈 CAGR: %s (bench %s)\n", pct(s.Stats.StrategyCAGR), pct(s.Stats.BenchmarkCAGR)))
	sb.WriteString(fmt.Sprintf("⚖️ Sharpe: %s (bench %s)\n", ratio(s.Stats.StrategySharpe), ratio(s.Stats.BenchmarkSharpe)))
	sb.WriteString(fmt.Sprintf("📉 Max DD: %s (bench %s)", pct(s.Stats.StrategyMaxDrawdown), pct(s.Stats.BenchmarkMaxDrawdown)))
	if s.RunID != "" {
		sb.WriteString(fmt.Sprintf("\n🆔 %s", s.RunID))
	}

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
