// Package errors provides centralized error definitions and error handling utilities
// for aide. It defines sentinel errors per subsystem, typed errors that carry
// context, and classification helpers.
//
// # Error Types
//
// Domain errors:
//   - IndexMismatchError: a plan update was addressed to the wrong step
//   - SidecarError: a request to the sidecar service failed
//   - TerminalError: a shell command could not be run or observed
//
// Semantic errors:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewIndexMismatchError(step.Index(), update.Index)
//	if errors.Is(err, errors.ErrIndexMismatch) { ... }
//
//	var sidecarErr *errors.SidecarError
//	if errors.As(err, &sidecarErr) && sidecarErr.StatusCode == 404 { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Re-export standard library functions so callers only need this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Plan-related sentinel errors
var (
	// ErrIndexMismatch indicates an update was applied to a step with a different index.
	ErrIndexMismatch = New("step index mismatch")
	// ErrStepNotFound indicates no step exists at the requested index.
	ErrStepNotFound = New("step not found")
	// ErrPlanDisposed indicates the plan was used after Dispose.
	ErrPlanDisposed = New("plan disposed")
)

// Terminal-related sentinel errors
var (
	// ErrTerminalBusy indicates a command is already running in the terminal.
	ErrTerminalBusy = New("terminal is busy")
	// ErrTerminalNotFound indicates the terminal ID is unknown.
	ErrTerminalNotFound = New("terminal not found")
	// ErrNoShellIntegration indicates the backend cannot observe command completion.
	ErrNoShellIntegration = New("shell integration unavailable")
	// ErrCommandFailed indicates a command exited with a non-zero status.
	ErrCommandFailed = New("command failed")
)

// Sidecar-related sentinel errors
var (
	// ErrSidecarUnavailable indicates the sidecar could not be reached.
	ErrSidecarUnavailable = New("sidecar unavailable")
	// ErrSidecarResponse indicates the sidecar returned an unexpected response.
	ErrSidecarResponse = New("unexpected sidecar response")
	// ErrStreamClosed indicates the event stream ended before a terminal event.
	ErrStreamClosed = New("event stream closed")
)

// Context key sentinel errors
var (
	// ErrUnknownContextKey indicates the key was never declared.
	ErrUnknownContextKey = New("unknown context key")
	// ErrContextKeyType indicates a value of the wrong type was set for a key.
	ErrContextKeyType = New("context key type mismatch")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AideError is the base interface for all aide errors.
type AideError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to display to users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// formatWithContext renders "<kind> [k=v, ...]: message: cause".
func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// IndexMismatchError is returned when an update addressed to one step index is
// applied to a step holding a different index. It is a contract violation by
// the caller and is never retryable.
//
// Example:
//
//	err := errors.NewIndexMismatchError(0, 3)
//	fmt.Println(err) // "plan error [step=0, update=3]: update applied to wrong step: step index mismatch"
type IndexMismatchError struct {
	baseError
	StepIndex   int
	UpdateIndex int
	SessionID   string
}

// NewIndexMismatchError creates an IndexMismatchError for the given indices.
func NewIndexMismatchError(stepIndex, updateIndex int) *IndexMismatchError {
	return &IndexMismatchError{
		baseError: baseError{
			message:    "update applied to wrong step",
			cause:      ErrIndexMismatch,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: false,
		},
		StepIndex:   stepIndex,
		UpdateIndex: updateIndex,
	}
}

// WithSessionID adds the owning plan's session ID.
func (e *IndexMismatchError) WithSessionID(id string) *IndexMismatchError {
	e.SessionID = id
	return e
}

// Error returns the formatted error message.
func (e *IndexMismatchError) Error() string {
	parts := []string{
		fmt.Sprintf("step=%d", e.StepIndex),
		fmt.Sprintf("update=%d", e.UpdateIndex),
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	return formatWithContext("plan error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *IndexMismatchError) Is(target error) bool {
	if _, ok := target.(*IndexMismatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SidecarError represents a failed request to the sidecar service.
//
// Example:
//
//	err := errors.NewSidecarError("search failed", errors.ErrSidecarResponse).
//		WithEndpoint("/api/agent/search").WithStatusCode(502)
type SidecarError struct {
	baseError
	Endpoint   string
	StatusCode int
	Body       string
}

// NewSidecarError creates a new SidecarError.
func NewSidecarError(message string, cause error) *SidecarError {
	return &SidecarError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  Is(cause, ErrSidecarUnavailable),
			userFacing: true,
		},
	}
}

// WithEndpoint adds the request path to the error context.
func (e *SidecarError) WithEndpoint(endpoint string) *SidecarError {
	e.Endpoint = endpoint
	return e
}

// WithStatusCode records the HTTP status. 429 and 5xx responses are retryable.
func (e *SidecarError) WithStatusCode(code int) *SidecarError {
	e.StatusCode = code
	if code == http.StatusTooManyRequests || code >= 500 {
		e.retryable = true
	}
	return e
}

// WithBody records a (truncated) response body.
func (e *SidecarError) WithBody(body string) *SidecarError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	e.Body = body
	return e
}

// WithRetryable overrides whether the error is retryable.
func (e *SidecarError) WithRetryable(r bool) *SidecarError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SidecarError) Error() string {
	var parts []string
	if e.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", e.Endpoint))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	msg := e.message
	if e.Body != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Body)
	}
	return formatWithContext("sidecar error", parts, msg, e.cause)
}

// Is checks if this error matches the target.
func (e *SidecarError) Is(target error) bool {
	if _, ok := target.(*SidecarError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TerminalError represents a failure running or observing a shell command.
type TerminalError struct {
	baseError
	TerminalID string
	Command    string
	ExitCode   int
}

// NewTerminalError creates a new TerminalError.
func NewTerminalError(message string, cause error) *TerminalError {
	return &TerminalError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		ExitCode: -1,
	}
}

// WithTerminalID adds the terminal ID to the error context.
func (e *TerminalError) WithTerminalID(id string) *TerminalError {
	e.TerminalID = id
	return e
}

// WithCommand adds the command line to the error context.
func (e *TerminalError) WithCommand(cmd string) *TerminalError {
	e.Command = cmd
	return e
}

// WithExitCode records the command's exit status.
func (e *TerminalError) WithExitCode(code int) *TerminalError {
	e.ExitCode = code
	return e
}

// Error returns the formatted error message.
func (e *TerminalError) Error() string {
	var parts []string
	if e.TerminalID != "" {
		parts = append(parts, fmt.Sprintf("terminal=%s", e.TerminalID))
	}
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%q", e.Command))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	return formatWithContext("terminal error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *TerminalError) Is(target error) bool {
	if _, ok := target.(*TerminalError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("terminal", "abc123")
//	fmt.Println(err) // "terminal 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, nil)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    fmt.Sprintf("%s timed out after %v", operation, duration),
			cause:      ErrTimeout,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
// Errors that don't implement AideError are not retryable, except the
// ErrTimeout and ErrSidecarUnavailable sentinels.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var aideErr AideError
	if As(err, &aideErr) {
		return aideErr.IsRetryable()
	}
	return Is(err, ErrTimeout) || Is(err, ErrSidecarUnavailable)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var aideErr AideError
	if As(err, &aideErr) {
		return aideErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement AideError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var aideErr AideError
	if As(err, &aideErr) {
		return aideErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
