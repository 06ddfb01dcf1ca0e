package engine

import (
	"context"
	"time"
)

// Outcome is what an Executor reports for one transcript.
type Outcome struct {
	// Status is the unit status derived from the execution.
	Status UnitStatus `json:"status"`

	// ExitCode is the remote-shell client's exit status, or -1 when it never ran.
	ExitCode int `json:"exit_code"`

	// Duration is the wall time spent in the executor.
	Duration time.Duration `json:"duration"`

	// Err carries the classified failure, if any.
	Err error `json:"-"`
}

// Executor ships one transcript to the remote host.
// Environmental failures are reported in the Outcome, never panicked.
type Executor interface {
	Execute(ctx context.Context, transcript string) Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, transcript string) Outcome

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, transcript string) Outcome {
	return f(ctx, transcript)
}

// Recorder persists run history. Errors are logged and never fail a run.
type Recorder interface {
	// RunStarted records the start of a run.
	RunStarted(ctx context.Context, runID string, conn Connection, startedAt time.Time) error

	// UnitFinished records the result of one unit.
	UnitFinished(ctx context.Context, runID string, result UnitResult) error

	// RunFinished records the final state of a run.
	RunFinished(ctx context.Context, report *Report) error
}

// Notifier prints operator-facing notices such as reboot warnings.
type Notifier interface {
	Notice(format string, args ...interface{})
}
