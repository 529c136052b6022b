package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes graph construction errors.
type ErrorCode string

const (
	// ErrCodeCycle indicates the declared dependencies contain a cycle.
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodeUnknownDependency indicates a field depends on an undeclared name.
	ErrCodeUnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"

	// ErrCodeDuplicateField indicates the same name was declared twice.
	ErrCodeDuplicateField ErrorCode = "DUPLICATE_FIELD"
)

// ErrFrozen is returned when declarations are changed after Build.
var ErrFrozen = errors.New("field declarations are frozen")

// CycleError reports a dependency cycle found while building a graph.
//
// Participants lists every field that sits on some cycle, in declaration
// order. Path is one concrete witness cycle, closed (first == last).
type CycleError struct {
	Participants []string
	Path         []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: field dependency cycle detected: %s", ErrCodeCycle, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: field dependency cycle detected among [%s]", ErrCodeCycle, strings.Join(e.Participants, ", "))
}

// UnknownDependencyError means a declared dependency does not exist.
type UnknownDependencyError struct {
	Field      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%s: field %q depends on undeclared field %q", ErrCodeUnknownDependency, e.Field, e.Dependency)
}

// DuplicateFieldError means the same name appears more than once.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s: field %q declared more than once", ErrCodeDuplicateField, e.Field)
}

// IsCycleError returns true if err is or wraps a *CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
