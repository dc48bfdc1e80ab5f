package report

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/newthinker/driftlab/internal/backtest"
	"github.com/newthinker/driftlab/internal/core"
	"github.com/newthinker/driftlab/internal/storage/archive"
	"go.uber.org/zap"
)

// Artifact names written under runs/<id>/
const (
	TradesFile = "trades.csv"
	EquityFile = "equity.csv"
	ResultFile = "result.json"
)

// Exporter writes run artifacts to archive storage
type Exporter struct {
	store  archive.Storage
	logger *zap.Logger
}

// NewExporter creates an exporter over store
func NewExporter(store archive.Storage, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, logger: logger}
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

// RunPath returns the artifact path of name for runID
func RunPath(runID, name string) string {
	return path.Join("runs", runID, name)
}

// Export writes the trades CSV, the equity CSV and the JSON result. An
// empty runID is replaced by a new one. Returns the paths written.
func (e *Exporter) Export(ctx context.Context, runID string, res *backtest.Result) ([]string, error) {
	if res == nil {
		return nil, core.WrapError(core.ErrRunFailed, fmt.Errorf("nothing to export"))
	}
	if runID == "" {
		runID = NewRunID()
	}

	var trades, equity bytes.Buffer
	if err := WriteTradesCSV(&trades, res.Trades); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if err := WriteEquityCSV(&equity, res.Equity, res.BenchmarkEquity); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	result, err := MarshalResult(runID, res)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	artifacts := []struct {
		name string
		data []byte
	}{
		{TradesFile, trades.Bytes()},
		{EquityFile, equity.Bytes()},
		{ResultFile, result},
	}

	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p := RunPath(runID, a.name)
		if err := e.store.Write(ctx, p, a.data); err != nil {
			return written, err
		}
		written = append(written, p)
	}

	e.logger.Info("run exported",
		zap.String("run_id", runID),
		zap.Int("trades", len(res.Trades)),
		zap.Strings("paths", written),
	)
	return written, nil
}
