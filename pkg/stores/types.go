package stores

import (
	"context"
	"time"
)

// Run is one recorded suite run.
type Run struct {
	ID          string     `json:"id"`
	Host        string     `json:"host"`
	Port        string     `json:"port"`
	User        string     `json:"user"`
	Tags        string     `json:"tags"` // comma separated
	Debug       bool       `json:"debug"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UnitRecord is the recorded result of one unit.
type UnitRecord struct {
	RunID      string    `json:"run_id"`
	Position   int       `json:"position"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Lines      int       `json:"lines"`
	DurationMs int64     `json:"duration_ms"`
	Error      *string   `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RunSummary is a run with its unit counts.
type RunSummary struct {
	Run
	Units     int `json:"units"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Store defines the interface for the run history ledger.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, id, status string, completedAt time.Time) error
	ListRuns(ctx context.Context, limit, offset int) ([]*RunSummary, error)
	DeleteRun(ctx context.Context, id string) error

	// Unit operations
	AppendUnit(ctx context.Context, unit *UnitRecord) error
	ListUnitsByRun(ctx context.Context, runID string) ([]*UnitRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
