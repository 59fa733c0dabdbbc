// Package errs provides the coded, recoverable errors surfaced by game
// transitions. Every code maps to a user-facing message; none is fatal.
package errs

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	CodeInternal             Code = "INTERNAL"
	CodeNoQuestionsAvailable Code = "NO_QUESTIONS_AVAILABLE"
	CodeEmptyInput           Code = "EMPTY_INPUT"
	CodeOracleUnavailable    Code = "ORACLE_UNAVAILABLE"
	CodeOracleBusy           Code = "ORACLE_BUSY"
	CodeNoActiveQuestion     Code = "NO_ACTIVE_QUESTION"
	CodeTimeExpired          Code = "TIME_EXPIRED"
	CodeAttemptInProgress    Code = "ATTEMPT_IN_PROGRESS"
	CodeDifficultyLocked     Code = "DIFFICULTY_LOCKED"
	CodeInvalidTier          Code = "INVALID_TIER"
)

// Oracle failure reasons, stored under the "reason" metadata key.
const (
	ReasonUnconfigured = "unconfigured"
	ReasonAuth         = "auth"
	ReasonRateLimited  = "rate_limited"
	ReasonTimeout      = "timeout"
	ReasonStatus       = "status"
	ReasonTransport    = "transport"
	ReasonEmpty        = "empty"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context, e.g. "reason"
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Reason returns the "reason" metadata value, if any.
func (e *Error) Reason() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata["reason"]
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithReason creates a domain error carrying a reason and a cause.
func WithReason(code Code, reason, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: map[string]string{"reason": reason},
		Cause:    cause,
	}
}

// CodeOf extracts the code from err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ReasonOf extracts the "reason" metadata from err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason()
	}
	return ""
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}
