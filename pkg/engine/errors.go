package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a failure for reporting and retry decisions.
type ErrorClass string

const (
	// ErrorClassMissingDependency means a required local tool is absent.
	// It is fatal before orchestration starts.
	ErrorClassMissingDependency ErrorClass = "missing_dependency"

	// ErrorClassValidation means connection or configuration parameters
	// were rejected. It is fatal before orchestration starts.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassUnreachable means the remote endpoint never accepted a
	// connection within the polling budget.
	ErrorClassUnreachable ErrorClass = "unreachable"

	// ErrorClassRemoteFailure means the remote-shell client exited non-zero.
	ErrorClassRemoteFailure ErrorClass = "remote_failure"

	// ErrorClassMalformedUnit means a deferred unit failed while building
	// its transcript.
	ErrorClassMalformedUnit ErrorClass = "malformed_unit"

	// ErrorClassDeclined means the operator declined a debug confirmation.
	ErrorClassDeclined ErrorClass = "declined"

	// ErrorClassCancelled means the run context was cancelled.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Unit is the name of the unit that caused the error, if any.
	Unit string `json:"unit,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Unit != "" && e.Operation != "" {
		msg += fmt.Sprintf(" (unit=%s, operation=%s)", e.Unit, e.Operation)
	} else if e.Unit != "" {
		msg += fmt.Sprintf(" (unit=%s)", e.Unit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, message string, err error) *EngineError {
	return &EngineError{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// NewMissingDependencyError creates a missing dependency error.
func NewMissingDependencyError(message string, err error) *EngineError {
	return newError(ErrorClassMissingDependency, message, err)
}

// NewValidationError creates a validation error carrying ErrCodeValidation.
func NewValidationError(message string, err error) *EngineError {
	return newError(ErrorClassValidation, message, err).WithCode(ErrCodeValidation)
}

// NewUnreachableError creates an unreachable error.
func NewUnreachableError(message string, err error) *EngineError {
	return newError(ErrorClassUnreachable, message, err)
}

// NewRemoteFailureError creates a remote execution failure carrying the
// client's exit status.
func NewRemoteFailureError(exitCode int, err error) *EngineError {
	return newError(ErrorClassRemoteFailure, fmt.Sprintf("remote shell exited with status %d", exitCode), err).
		WithDetail("exit_code", exitCode)
}

// NewMalformedUnitError creates a malformed unit error.
func NewMalformedUnitError(unit string, err error) *EngineError {
	return newError(ErrorClassMalformedUnit, "unit failed to build its transcript", err).WithUnit(unit)
}

// NewDeclinedError creates an error for a unit the operator declined.
func NewDeclinedError(message string) *EngineError {
	return newError(ErrorClassDeclined, message, nil)
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(err error) *EngineError {
	return newError(ErrorClassCancelled, "run cancelled", err)
}

// WithUnit adds unit context to an error.
func (e *EngineError) WithUnit(unit string) *EngineError {
	e.Unit = unit
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of the first EngineError in err's chain.
func ClassOf(err error) (ErrorClass, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

func hasClass(err error, class ErrorClass) bool {
	c, ok := ClassOf(err)
	return ok && c == class
}

// IsMissingDependency reports whether err is a missing dependency error.
func IsMissingDependency(err error) bool {
	return hasClass(err, ErrorClassMissingDependency)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

// IsUnreachable reports whether err is an unreachable error.
func IsUnreachable(err error) bool {
	return hasClass(err, ErrorClassUnreachable)
}

// IsRemoteFailure reports whether err is a remote execution failure.
func IsRemoteFailure(err error) bool {
	return hasClass(err, ErrorClassRemoteFailure)
}

// IsMalformedUnit reports whether err is a malformed unit error.
func IsMalformedUnit(err error) bool {
	return hasClass(err, ErrorClassMalformedUnit)
}

// IsDeclined reports whether err is a declined confirmation.
func IsDeclined(err error) bool {
	return hasClass(err, ErrorClassDeclined)
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return hasClass(err, ErrorClassCancelled)
}

// IsRetryable returns true if running the unit again may succeed.
// Only reachability failures qualify.
func IsRetryable(err error) bool {
	return IsUnreachable(err)
}

// Common error codes.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeExitStatus  = "EXIT_STATUS"
	ErrCodeStartFailed = "START_FAILED"
	ErrCodeBuildFailed = "BUILD_FAILED"
)
