package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/driftlab/internal/collector"
	"github.com/newthinker/driftlab/internal/core"
)

func TestClient_ImplementsSource(t *testing.T) {
	var _ collector.Source = (*Client)(nil)
	var _ collector.HistoryFetcher = (*Client)(nil)
}

func TestClient_Name(t *testing.T) {
	if New(Config{}).Name() != "yahoo" {
		t.Error("expected 'yahoo'")
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"AAPL", "BRK-B", "^GSPC", "0700.HK", "600519.SH", "SPY"}
	for _, s := range valid {
		if err := validateSymbol(s); err != nil {
			t.Errorf("validateSymbol(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "AAPL/../x", "A B", strings.Repeat("A", 25)}
	for _, s := range invalid {
		if err := validateSymbol(s); err == nil {
			t.Errorf("validateSymbol(%q) expected error", s)
		}
	}
}

func TestToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	for _, tc := range tests {
		if got := toYahooSymbol(tc.input); got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL","currency":"USD"},
"timestamp":[1578666600,1578925800,1579012200],
"indicators":{"quote":[{"close":[77.5,78.1,null]}],"adjclose":[{"adjclose":[75.1,75.8,null]}]}}],"error":null}}`

func TestClient_FetchHistory(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := New(Config{ChartURL: srv.URL + "/v8/finance/chart"})
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	points, err := c.FetchHistory(context.Background(), "AAPL", start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}

	if gotPath != "/v8/finance/chart/AAPL" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if !strings.Contains(gotQuery, "includeAdjustedClose=true") {
		t.Errorf("expected adjusted close request, got %s", gotQuery)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points (null skipped), got %d", len(points))
	}
	if points[0].Close != 75.1 {
		t.Errorf("expected adjusted close 75.1, got %f", points[0].Close)
	}
	want := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)
	if !points[0].Date.Equal(want) {
		t.Errorf("expected 2020-01-10, got %s", points[0].Date)
	}
}

func TestClient_FetchHistory_FallsBackToClose(t *testing.T) {
	body := `{"chart":{"result":[{"timestamp":[1578666600],"indicators":{"quote":[{"close":[77.5]}]}}],"error":null}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	points, err := New(Config{ChartURL: srv.URL}).FetchHistory(context.Background(), "AAPL", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(points) != 1 || points[0].Close != 77.5 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestClient_FetchHistory_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "GONE") {
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
			return
		}
		if strings.Contains(r.URL.Path, "NOPE") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{ChartURL: srv.URL})
	ctx := context.Background()

	if _, err := c.FetchHistory(ctx, "AAPL", time.Now(), time.Now()); !errors.Is(err, core.ErrCollectorFailed) {
		t.Errorf("expected COLLECTOR_FAILED on 429, got %v", err)
	}
	if _, err := c.FetchHistory(ctx, "GONE", time.Now(), time.Now()); !errors.Is(err, core.ErrCollectorFailed) {
		t.Errorf("expected COLLECTOR_FAILED on yahoo error, got %v", err)
	}
	if _, err := c.FetchHistory(ctx, "NOPE", time.Now(), time.Now()); !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("expected SYMBOL_NOT_FOUND on 404, got %v", err)
	}
	if _, err := c.FetchHistory(ctx, "bad symbol", time.Now(), time.Now()); err == nil {
		t.Error("expected validation error")
	}
}

func TestClient_FetchHistory_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{ChartURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FetchHistory(ctx, "AAPL", time.Now(), time.Now())
	if !errors.Is(err, core.ErrCollectorTimeout) {
		t.Errorf("expected COLLECTOR_TIMEOUT, got %v", err)
	}
}

func TestClient_FetchPrices_OmitsFailedSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/AAPL") {
			w.Write([]byte(chartBody))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{ChartURL: srv.URL})
	tbl, err := c.FetchPrices(context.Background(), []string{"AAPL", "MISSING"}, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if !tbl.Has("AAPL") || tbl.Has("MISSING") {
		t.Errorf("unexpected columns %v", tbl.Symbols())
	}
}

func TestClient_FetchEarningsDates(t *testing.T) {
	var query earningsQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			t.Errorf("decoding query: %v", err)
		}
		w.Write([]byte(`{"finance":{"result":[{"documents":[{
			"columns":[{"id":"ticker","label":"Symbol"},{"id":"startdatetime","label":"Event Start Date"}],
			"rows":[["AAPL","2024-10-31T20:30:00.000Z"],["AAPL","2024-08-01T20:30:00Z"],["AAPL",null]]
		}]}],"error":null}}`))
	}))
	defer srv.Close()

	c := New(Config{EarningsURL: srv.URL})
	dates, err := c.FetchEarningsDates(context.Background(), "AAPL", 12)
	if err != nil {
		t.Fatalf("FetchEarningsDates: %v", err)
	}

	if query.Size != 12 || query.SortType != "DESC" {
		t.Errorf("unexpected query %+v", query)
	}
	if len(dates) != 2 {
		t.Fatalf("expected 2 dates, got %d", len(dates))
	}
	want := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	if !dates[0].Equal(want) {
		t.Errorf("expected %s, got %s", want, dates[0])
	}
}

func TestClient_FetchEarningsDates_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"finance":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	dates, err := New(Config{EarningsURL: srv.URL}).FetchEarningsDates(context.Background(), "AAPL", 0)
	if err != nil {
		t.Fatalf("FetchEarningsDates: %v", err)
	}
	if len(dates) != 0 {
		t.Errorf("expected no dates, got %v", dates)
	}
}
