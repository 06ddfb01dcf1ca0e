package engine

import (
	"fmt"
)

// RunStatus represents the overall status of a suite run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every executed unit succeeded.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates at least one unit failed or could not reach the host.
	RunStatusFailed RunStatus = "failed"

	// RunStatusAborted indicates a unit failed to build and the run stopped.
	RunStatusAborted RunStatus = "aborted"

	// RunStatusCancelled indicates the run was cancelled by the user.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed,
		RunStatusAborted, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// UnitStatus is the outcome of a single unit.
type UnitStatus string

const (
	// UnitStatusSucceeded indicates the remote shell exited zero.
	UnitStatusSucceeded UnitStatus = "succeeded"

	// UnitStatusFailed indicates the remote shell exited non-zero or could not start.
	UnitStatusFailed UnitStatus = "failed"

	// UnitStatusUnreachable indicates the host never accepted a connection.
	UnitStatusUnreachable UnitStatus = "unreachable"

	// UnitStatusDeclined indicates the operator declined the transcript preview.
	UnitStatusDeclined UnitStatus = "declined"

	// UnitStatusSkipped indicates the unit was filtered out or produced nothing.
	UnitStatusSkipped UnitStatus = "skipped"

	// UnitStatusMalformed indicates the unit failed to build its transcript.
	UnitStatusMalformed UnitStatus = "malformed"

	// UnitStatusCancelled indicates the unit was not run because the context ended.
	UnitStatusCancelled UnitStatus = "cancelled"
)

// IsFailure reports whether the status should fail the run.
func (s UnitStatus) IsFailure() bool {
	switch s {
	case UnitStatusFailed, UnitStatusUnreachable, UnitStatusMalformed, UnitStatusCancelled:
		return true
	default:
		return false
	}
}

// Validate checks if the unit status is valid.
func (s UnitStatus) Validate() error {
	switch s {
	case UnitStatusSucceeded, UnitStatusFailed, UnitStatusUnreachable, UnitStatusDeclined,
		UnitStatusSkipped, UnitStatusMalformed, UnitStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid unit status: %s", s)
	}
}
