package engine

import (
	"errors"
	"fmt"
)

// ValidationError is a failure reported by a field resolver: the data the
// field needs is missing or invalid.
//
// Validation errors are captured during a sweep and exposed through
// Errors/Err. They never abort the sweep of unrelated fields.
type ValidationError struct {
	// Field is the name of the field whose resolver failed.
	Field string

	// Message is the user-facing description, e.g. "Shipping address can not be empty".
	Message string

	// Cause is set when the resolver returned a plain error rather than a
	// ValidationError.
	Cause error
}

// Error implements the error interface. It returns only the message so
// callers can display it directly.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Fail returns a ValidationError with msg. The engine fills in Field.
func Fail(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// Failf is like Fail with fmt formatting.
func Failf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// RejectCode categorizes mutation rejections.
type RejectCode string

const (
	// RejectResolving means a sweep is running.
	RejectResolving RejectCode = "RESOLVING"

	// RejectOrdered means the record has reached its terminal state.
	RejectOrdered RejectCode = "ORDERED"

	// RejectInFlight means an earlier mutation is still awaiting confirmation.
	RejectInFlight RejectCode = "IN_FLIGHT"

	// RejectUnknownField means the field is not declared.
	RejectUnknownField RejectCode = "UNKNOWN_FIELD"

	// RejectMismatch means the field's resolver computed a different value
	// from the one supplied.
	RejectMismatch RejectCode = "RESOLVER_MISMATCH"

	// RejectContradicted means a sweep changed the field away from the
	// supplied value.
	RejectContradicted RejectCode = "CONTRADICTED"

	// RejectInvalid means a collaborator refused the value before it reached
	// the engine (bad input shape, missing item, etc).
	RejectInvalid RejectCode = "INVALID"
)

// MutationRejected reports that a set operation was not applied.
// A rejected mutation leaves every field and override as it was.
type MutationRejected struct {
	Code    RejectCode
	Field   string
	Message string
}

func (e *MutationRejected) Error() string {
	return e.Message
}

// Reject creates a MutationRejected.
func Reject(code RejectCode, field, msg string) *MutationRejected {
	return &MutationRejected{Code: code, Field: field, Message: msg}
}

// ErrIllegalTransition is returned when a lifecycle operation is not
// permitted in the engine's current state.
var ErrIllegalTransition = errors.New("illegal state transition")

// IsValidationError returns true if err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRejected returns true if err is or wraps a *MutationRejected.
func IsRejected(err error) bool {
	var mr *MutationRejected
	return errors.As(err, &mr)
}

// RejectionCode returns the code of a wrapped *MutationRejected, or "".
func RejectionCode(err error) RejectCode {
	var mr *MutationRejected
	if errors.As(err, &mr) {
		return mr.Code
	}
	return ""
}
