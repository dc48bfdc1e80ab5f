// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/config"
	"github.com/newthinker/driftlab/internal/metrics"
	"go.uber.org/zap"
)

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, cfg backtest.Config) (*backtest.Result, error) {
	return &backtest.Result{Config: cfg}, nil
}

func testDeps() Dependencies {
	return Dependencies{
		Runner:   stubRunner{},
		Defaults: config.Defaults().Backtest,
	}
}

func TestServer_Health(t *testing.T) {
	srv, err := NewServer(Config{
		Host: "localhost",
		Port: 0,
	}, testDeps(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request ID from logging middleware")
	}
}

func TestServer_RequiresRunner(t *testing.T) {
	if _, err := NewServer(Config{}, Dependencies{}, nil); err == nil {
		t.Error("expected error without a runner")
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv, _ := NewServer(Config{
		Host:   "localhost",
		Port:   0,
		APIKey: "test-key",
	}, testDeps(), zap.NewNop())

	// Without API key
	req := httptest.NewRequest("GET", "/api/v1/backtests", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	// Health stays open
	req = httptest.NewRequest("GET", "/api/health", nil)
	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected open health check, got %d", w.Code)
	}
}

func TestServer_APIAuth_ValidKey(t *testing.T) {
	srv, _ := NewServer(Config{
		Host:   "localhost",
		Port:   0,
		APIKey: "test-key",
	}, testDeps(), zap.NewNop())

	// With API key
	req := httptest.NewRequest("GET", "/api/v1/backtests", nil)
	req.Header.Set("X-API-Key", "test-key")
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_BacktestRoundTrip(t *testing.T) {
	srv, _ := NewServer(Config{Host: "localhost", Port: 0}, testDeps(), zap.NewNop())

	req := httptest.NewRequest("POST", "/api/v1/backtests", bytes.NewBufferString(`{"tickers":["AAPL"]}`))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	var created struct {
		Data struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	deadline := time.Now().Add(2 * time.Second)
	for {
		j, err := srv.jobs.Get(created.Data.JobID)
		if err != nil {
			t.Fatalf("job lookup: %v", err)
		}
		if j.Status.Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/backtests/"+created.Data.JobID, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"complete"`) {
		t.Errorf("unexpected status response %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/backtests/"+created.Data.JobID+"/trades.csv", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/csv" {
		t.Errorf("unexpected csv response %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/backtests/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewRegistry()
	srv, _ := NewServer(Config{Host: "localhost", Port: 0, MetricsPath: "/metrics"}, deps, zap.NewNop())

	srv.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/health", nil))

	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Error("expected http_requests_total in metrics output")
	}
}

func TestServer_Shutdown(t *testing.T) {
	srv, _ := NewServer(Config{Host: "localhost", Port: 0}, testDeps(), zap.NewNop())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	// Second call must not panic on the closed channel
	srv.Shutdown(context.Background())
}
