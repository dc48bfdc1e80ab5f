package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	skipsTotal   *prometheus.CounterVec
	tradesTotal  *prometheus.CounterVec
	fetchesTotal *prometheus.CounterVec
	jobsActive   prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftlab_runs_total",
			Help: "Total number of backtest runs",
		},
		[]string{"variant", "status"},
	)
	r.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftlab_run_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"variant"},
	)
	r.skipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftlab_skips_total",
			Help: "Total number of tickers and earnings events skipped, by reason",
		},
		[]string{"reason"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftlab_trades_total",
			Help: "Total number of trades generated",
		},
		[]string{"variant"},
	)
	r.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftlab_fetches_total",
			Help: "Total number of market data fetches",
		},
		[]string{"source", "kind", "status"},
	)
	r.jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftlab_jobs_active",
			Help: "Number of backtest jobs pending or running",
		},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.skipsTotal)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.fetchesTotal)
	reg.MustRegister(r.jobsActive)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRun records a finished backtest run.
func (r *Registry) RecordRun(variant, status string, seconds float64) {
	r.runsTotal.WithLabelValues(variant, status).Inc()
	if status == "ok" {
		r.runDuration.WithLabelValues(variant).Observe(seconds)
	}
}

// RecordSkip records a skipped ticker or earnings event.
func (r *Registry) RecordSkip(reason string) {
	r.skipsTotal.WithLabelValues(reason).Inc()
}

// RecordTrades adds the trades generated by a run.
func (r *Registry) RecordTrades(variant string, n int) {
	r.tradesTotal.WithLabelValues(variant).Add(float64(n))
}

// RecordFetch records a market data fetch against a source.
func (r *Registry) RecordFetch(source, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.fetchesTotal.WithLabelValues(source, kind, status).Inc()
}

// SetJobsActive sets the number of pending or running jobs.
func (r *Registry) SetJobsActive(count int) {
	r.jobsActive.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
