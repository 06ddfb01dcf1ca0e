package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/suite/pkg/engine"
)

// HistoryRecorder writes orchestrator progress to a Store.
type HistoryRecorder struct {
	store Store
}

// NewHistoryRecorder creates a recorder backed by store.
func NewHistoryRecorder(store Store) *HistoryRecorder {
	return &HistoryRecorder{store: store}
}

// RunStarted inserts a running run row.
func (r *HistoryRecorder) RunStarted(ctx context.Context, runID string, conn engine.Connection, startedAt time.Time) error {
	return r.store.CreateRun(ctx, &Run{
		ID:        runID,
		Host:      conn.Host,
		Port:      conn.Port,
		User:      conn.User,
		Tags:      strings.Join(conn.Tags, ","),
		Debug:     conn.Debug,
		Status:    string(engine.RunStatusRunning),
		StartedAt: startedAt.UTC(),
	})
}

// UnitFinished appends one unit result.
func (r *HistoryRecorder) UnitFinished(ctx context.Context, runID string, result engine.UnitResult) error {
	rec := &UnitRecord{
		RunID:      runID,
		Position:   result.Index,
		Name:       result.Name,
		Status:     string(result.Status),
		ExitCode:   result.ExitCode,
		Lines:      result.Lines,
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Error != "" {
		msg := result.Error
		rec.Error = &msg
	}
	return r.store.AppendUnit(ctx, rec)
}

// RunFinished stores the final run status. Reports still running are
// rejected so the row keeps its running state.
func (r *HistoryRecorder) RunFinished(ctx context.Context, report *engine.Report) error {
	if err := report.Status.Validate(); err != nil {
		return err
	}
	if !report.Status.IsTerminal() {
		return fmt.Errorf("run %s has not finished: status %s", report.RunID, report.Status)
	}

	finishedAt := report.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	return r.store.FinishRun(ctx, report.RunID, string(report.Status), finishedAt.UTC())
}

var _ engine.Recorder = (*HistoryRecorder)(nil)
