// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/notifier"
	"github.com/newthinker/driftlab/internal/series"
)

// Webhook posts run summaries as JSON
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

type payload struct {
	Type       string               `json:"type"`
	RunID      string               `json:"run_id,omitempty"`
	Variant    string               `json:"variant"`
	Status     string               `json:"status"`
	Error      string               `json:"error,omitempty"`
	Tickers    []string             `json:"tickers"`
	Benchmark  string               `json:"benchmark"`
	StartDate  string               `json:"start_date"`
	EndDate    string               `json:"end_date"`
	Trades     int                  `json:"trades"`
	Skipped    int                  `json:"skipped"`
	Stats      *backtest.Statistics `json:"stats,omitempty"`
	DurationMs int64                `json:"duration_ms"`
}

func toPayload(s notifier.Summary) payload {
	p := payload{
		Type:       "backtest",
		RunID:      s.RunID,
		Variant:    s.Variant,
		Status:     s.Status,
		Error:      s.Error,
		Tickers:    s.Tickers,
		Benchmark:  s.Benchmark,
		StartDate:  s.Start.Format(series.DateLayout),
		EndDate:    s.End.Format(series.DateLayout),
		Trades:     s.Trades,
		Skipped:    s.Skipped,
		DurationMs: s.Duration.Milliseconds(),
	}
	if s.Status == notifier.StatusCompleted {
		stats := s.Stats
		p.Stats = &stats
	}
	return p
}

func (w *Webhook) Notify(ctx context.Context, s notifier.Summary) error {
	body, err := json.Marshal(toPayload(s))
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
