// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newthinker/driftlab/internal/api/job"
	"github.com/newthinker/driftlab/internal/api/response"
	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/config"
	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/notifier"
	"github.com/newthinker/driftlab/internal/report"
	"github.com/newthinker/driftlab/internal/series"
	"go.uber.org/zap"
)

const defaultRunTimeout = 10 * time.Minute

// Runner executes one backtest. *backtest.Engine implements it.
type Runner interface {
	Run(ctx context.Context, cfg backtest.Config) (*backtest.Result, error)
}

// JobGauge receives the number of pending or running jobs.
type JobGauge interface {
	SetJobsActive(count int)
}

// BacktestRequest overrides the configured defaults for one run. Omitted
// fields keep their default.
type BacktestRequest struct {
	Tickers         []string `json:"tickers,omitempty"`
	Benchmark       string   `json:"benchmark,omitempty"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
	MinHistoryDays  *int     `json:"min_history_days,omitempty"`
	CalendarPadDays *int     `json:"calendar_pad_days,omitempty"`
	Variant         string   `json:"variant,omitempty"`
	Export          bool     `json:"export,omitempty"`
}

// runOutput is what a finished job holds.
type runOutput struct {
	Result    *backtest.Result
	Artifacts []string
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	runner   Runner
	defaults config.BacktestConfig
	exporter *report.Exporter
	gauge    JobGauge
	notify   *notifier.Registry
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// HandlerOption configures a BacktestHandler.
type HandlerOption func(*BacktestHandler)

// WithExporter enables artifact export for requests that ask for it.
func WithExporter(e *report.Exporter) HandlerOption {
	return func(h *BacktestHandler) { h.exporter = e }
}

// WithJobGauge reports active job counts.
func WithJobGauge(g JobGauge) HandlerOption {
	return func(h *BacktestHandler) { h.gauge = g }
}

// WithNotifiers sends a summary to every notifier when a job finishes.
func WithNotifiers(n *notifier.Registry) HandlerOption {
	return func(h *BacktestHandler) { h.notify = n }
}

// WithRunTimeout bounds each run.
func WithRunTimeout(d time.Duration) HandlerOption {
	return func(h *BacktestHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *BacktestHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(
	jobStore *job.Store,
	runner Runner,
	defaults config.BacktestConfig,
	opts ...HandlerOption,
) *BacktestHandler {
	h := &BacktestHandler{
		jobStore: jobStore,
		runner:   runner,
		defaults: defaults,
		timeout:  defaultRunTimeout,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	cfg, err := h.buildConfig(req)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	j := h.jobStore.Create("backtest")
	h.reportActive()

	// Copy values before starting goroutine to avoid race
	jobID := j.ID
	status := j.Status

	go h.runBacktest(jobID, cfg, req.Export)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// buildConfig applies request overrides to the configured defaults.
func (h *BacktestHandler) buildConfig(req BacktestRequest) (backtest.Config, error) {
	b := h.defaults
	if len(req.Tickers) > 0 {
		b.Tickers = req.Tickers
	}
	if req.Benchmark != "" {
		b.Benchmark = req.Benchmark
	}
	if req.StartDate != "" {
		b.StartDate = req.StartDate
	}
	if req.EndDate != "" {
		b.EndDate = req.EndDate
	}
	if req.Threshold != nil {
		b.Threshold = *req.Threshold
	}
	if req.MinHistoryDays != nil {
		b.MinHistoryDays = *req.MinHistoryDays
	}
	if req.CalendarPadDays != nil {
		b.CalendarPadDays = *req.CalendarPadDays
	}
	if req.Variant != "" {
		b.Variant = req.Variant
	}
	return b.RunConfig(h.now())
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, cfg backtest.Config, export bool) {
	defer h.reportActive()

	// Mark as running
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})
	h.reportActive()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	result, err := h.runner.Run(ctx, cfg)

	if err != nil {
		h.logger.Warn("backtest job failed", zap.String("job_id", jobID), zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = core.WrapError(core.ErrRunFailed, err)
		})
		h.sendNotifications(notifier.FailedSummary(jobID, cfg, err))
		return
	}

	out := runOutput{Result: result}
	if export && h.exporter != nil {
		paths, err := h.exporter.Export(ctx, jobID, result)
		if err != nil {
			h.logger.Warn("export failed", zap.String("job_id", jobID), zap.Error(err))
		}
		out.Artifacts = paths
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = out
	})
	h.sendNotifications(notifier.NewSummary(jobID, result))
}

// sendNotifications delivers a summary on a fresh context so a run that
// hit its timeout still reports.
func (h *BacktestHandler) sendNotifications(s notifier.Summary) {
	if h.notify == nil || h.notify.Len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for name, err := range h.notify.NotifyAll(ctx, s) {
		h.logger.Warn("notification failed",
			zap.String("job_id", s.RunID),
			zap.String("notifier", name),
			zap.Error(err),
		)
	}
}

// GetStatus returns the status of a backtest job, with the result once
// complete. ?equity=1 includes the equity curves.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobStore.Get(jobID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	resp := map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}

	if out, ok := j.Result.(runOutput); ok && j.Status == job.StatusComplete {
		withEquity := r.URL.Query().Get("equity") != ""
		resp["result"] = report.NewDocument(j.ID, out.Result, withEquity)
		if len(out.Artifacts) > 0 {
			resp["artifacts"] = out.Artifacts
		}
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.ErrorDetail{
			Code:    j.Error.Code,
			Message: j.Error.Message,
			Cause:   causeOf(j.Error),
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

// List returns a summary of every known job.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStore.List()
	items := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		item := map[string]any{
			"job_id":     j.ID,
			"status":     j.Status,
			"created_at": j.CreatedAt,
		}
		if out, ok := j.Result.(runOutput); ok {
			item["trades"] = out.Result.Stats.Trades
			item["variant"] = out.Result.Config.Rule.Variant()
		}
		items = append(items, item)
	}
	response.JSON(w, http.StatusOK, items)
}

// Trades streams the ledger of a completed job as CSV.
func (h *BacktestHandler) Trades(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobStore.Get(jobID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	out, ok := j.Result.(runOutput)
	if !ok || j.Status != job.StatusComplete {
		err := core.WrapError(core.ErrRunFailed, fmt.Errorf("job %s is %s", j.ID, j.Status))
		response.Error(w, http.StatusConflict, err)
		return
	}

	name := fmt.Sprintf("trades_%s_%s.csv",
		out.Result.Config.Rule.Variant(), out.Result.Config.End.Format(series.DateLayout))
	if err := response.CSV(w, name, func(wr io.Writer) error {
		return report.WriteTradesCSV(wr, out.Result.Trades)
	}); err != nil {
		h.logger.Warn("writing trades csv", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (h *BacktestHandler) reportActive() {
	if h.gauge != nil {
		h.gauge.SetJobsActive(h.jobStore.Active())
	}
}

func causeOf(e *core.Error) string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}
