package harness

import (
	"github.com/roach88/cartflow/internal/ir"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64      `json:"seq"`
	Op      string     `json:"op"`
	Field   string     `json:"field,omitempty"`
	ItemID  string     `json:"item_id,omitempty"`
	Outcome string     `json:"outcome"`
	Value   ir.IRValue `json:"value,omitempty"`
	Code    string     `json:"code,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Session string       `json:"session"`
	Trace   []TraceEvent `json:"trace"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final resolved cart.
	Snapshot ir.Snapshot `json:"snapshot"`

	// State is the final lifecycle state of the cart.
	State string `json:"state"`

	// OrderID is the committed order, or 0.
	OrderID int64 `json:"order_id,omitempty"`

	// Events are the bus event names published during the run.
	Events []string `json:"events,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
