package engine

import (
	"time"
)

// UnitResult records what happened to one queued unit.
type UnitResult struct {
	// Index is the unit's position in the queue.
	Index int `json:"index"`

	// Name is the unit label.
	Name string `json:"name"`

	// Status is the unit outcome.
	Status UnitStatus `json:"status"`

	// ExitCode is the remote-shell exit status, or -1 when it never ran.
	ExitCode int `json:"exit_code"`

	// Lines is the transcript line count, zero when nothing ran.
	Lines int `json:"lines"`

	// Duration is the time spent executing the unit.
	Duration time.Duration `json:"duration"`

	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`

	// Err is the classified failure, if any.
	Err error `json:"-"`
}

// Report summarises a suite run.
type Report struct {
	RunID      string       `json:"run_id"`
	Status     RunStatus    `json:"status"`
	Units      []UnitResult `json:"units"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Succeeded reports whether no unit failed.
func (r *Report) Succeeded() bool {
	for _, u := range r.Units {
		if u.Status.IsFailure() {
			return false
		}
	}
	return true
}

// Counts tallies units by status.
func (r *Report) Counts() map[UnitStatus]int {
	counts := make(map[UnitStatus]int)
	for _, u := range r.Units {
		counts[u.Status]++
	}
	return counts
}

// Duration returns the run wall time.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) finish(status RunStatus, at time.Time) {
	r.Status = status
	r.FinishedAt = at
}

func (r *Report) resolveStatus() RunStatus {
	if r.Succeeded() {
		return RunStatusSucceeded
	}
	return RunStatusFailed
}
