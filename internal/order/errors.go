package order

import (
	"errors"
	"fmt"
)

// Step names the commit stage a CommitError came from.
type Step string

const (
	// StepPrecondition means the cart was not ready to be ordered; nothing
	// was written.
	StepPrecondition Step = "PRECONDITION"

	// StepNumber means the order number could not be allocated.
	StepNumber Step = "ORDER_NUMBER"

	StepAddress  Step = "ORDER_ADDRESS"
	StepHeader   Step = "ORDER_HEADER"
	StepItems    Step = "ORDER_ITEMS"
	StepActivity Step = "ORDER_ACTIVITY"
	StepCart     Step = "DISABLE_CART"

	// StepTx means the transaction itself failed to begin or commit.
	StepTx Step = "TRANSACTION"
)

// CommitError reports a commit that did not happen. Every write made on
// its behalf has been rolled back and the cart is still unordered.
type CommitError struct {
	Step  Step
	Cause error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit order: %s: %v", e.Step, e.Cause)
}

// Unwrap returns the original cause, which may be an
// *engine.ValidationError for precondition failures.
func (e *CommitError) Unwrap() error {
	return e.Cause
}

// IsCommitError returns true if err is or wraps a *CommitError.
func IsCommitError(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce)
}

// FailedStep returns the step of a wrapped *CommitError, or "".
func FailedStep(err error) Step {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Step
	}
	return ""
}
