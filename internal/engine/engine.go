package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cartflow/internal/future"
	"github.com/roach88/cartflow/internal/graph"
	"github.com/roach88/cartflow/internal/ir"
)

// Engine evaluates one record's field graph and gates every write to it.
//
// An Engine is owned by exactly one session. It is NOT safe for concurrent
// use: sweeps, mutations and executor tasks touching the same engine must
// run on the owner's goroutine (drain a future.Queue there, not elsewhere).
//
// INVARIANTS:
//   - fields are evaluated strictly in graph order; a resolver never sees an
//     unresolved dependency
//   - at most one sweep is in flight; mutations while Resolving are rejected
//   - once Ordered, every mutation is rejected without side effect
//   - a rejected mutation leaves overrides and values as they were
type Engine[E any] struct {
	graph *Graph[E]
	order []graph.Node[Resolver[E]]
	env   E
	opts  options

	values    map[string]ir.IRValue
	overrides map[string]ir.IRValue
	failures  []*ValidationError

	state   State
	orderID int64
	pending string // field awaiting a deferred confirmation
}

// New creates an engine over a compiled graph. No fields are resolved until
// the first Resolve or SetField.
//
// The graph is immutable and may be shared by many engines.
func New[E any](g *Graph[E], env E, opts ...Option) *Engine[E] {
	e := &Engine[E]{
		graph:     g,
		order:     g.Sorted(),
		env:       env,
		opts:      defaultOptions(),
		values:    make(map[string]ir.IRValue, g.Len()),
		overrides: make(map[string]ir.IRValue),
	}
	for _, opt := range opts {
		opt(&e.opts)
	}
	e.opts.logger = e.opts.logger.With("engine", e.opts.name, "session", e.opts.session)
	return e
}

// Graph returns the engine's field graph.
func (e *Engine[E]) Graph() *Graph[E] { return e.graph }

// Env returns the injected environment.
func (e *Engine[E]) Env() E { return e.env }

// Session returns the session token attached to logs and events.
func (e *Engine[E]) Session() string { return e.opts.session }

// State returns the lifecycle state.
func (e *Engine[E]) State() State { return e.state }

// OrderID returns the order id once Ordered, else 0.
func (e *Engine[E]) OrderID() (int64, bool) {
	return e.orderID, e.state == Ordered
}

// Pending returns the field awaiting confirmation, or "".
func (e *Engine[E]) Pending() string { return e.pending }

// Get returns the resolved value of name. The second result is false when
// the field is undeclared or has not been resolved yet.
func (e *Engine[E]) Get(name string) (ir.IRValue, bool) {
	v, ok := e.values[name]
	if !ok {
		return ir.Null, false
	}
	return ir.OrNull(v), true
}

// Value is like Get but returns IRNull for absent fields.
func (e *Engine[E]) Value(name string) ir.IRValue {
	v, _ := e.Get(name)
	return v
}

// Snapshot returns every field in evaluation order. Unresolved fields are IRNull.
func (e *Engine[E]) Snapshot() ir.Snapshot {
	out := make(ir.Snapshot, len(e.order))
	for i, n := range e.order {
		out[i] = ir.Entry{Name: n.Name, Value: e.Value(n.Name)}
	}
	return out
}

// Errors returns every failure captured by the last sweep, in evaluation order.
func (e *Engine[E]) Errors() []*ValidationError {
	return slices.Clone(e.failures)
}

// Err returns the most recently captured failure, or nil.
func (e *Engine[E]) Err() error {
	if len(e.failures) == 0 {
		return nil
	}
	return e.failures[len(e.failures)-1]
}

// FieldErr returns the failure captured for name by the last sweep, or nil.
func (e *Engine[E]) FieldErr(name string) error {
	for _, f := range e.failures {
		if f.Field == name {
			return f
		}
	}
	return nil
}

// Override returns the raw stored value for name.
func (e *Engine[E]) Override(name string) (ir.IRValue, bool) {
	v, ok := e.overrides[name]
	return v, ok
}

// Overrides returns a copy of the raw override store.
func (e *Engine[E]) Overrides() ir.IRObject {
	return ir.IRObject(e.overrides).Clone()
}

// Load replaces the override store wholesale, e.g. from a persisted row,
// without sweeping. Call Resolve afterwards.
func (e *Engine[E]) Load(data ir.IRObject) error {
	if e.state != Idle || e.pending != "" {
		return fmt.Errorf("load overrides in state %s: %w", e.state, ErrIllegalTransition)
	}
	e.overrides = make(map[string]ir.IRValue, len(data))
	for k, v := range data {
		e.overrides[k] = ir.OrNull(v)
	}
	return nil
}

// Resolve sweeps every field. It is a no-op returning false while a sweep
// is already running or after the record is Ordered.
func (e *Engine[E]) Resolve() bool {
	if e.state != Idle {
		e.opts.logger.Debug("resolve skipped", "state", e.state.String())
		return false
	}
	e.sweep("", "", nil)
	return true
}

// SetField proposes a new value for name.
//
// Fields with dependents store the override, sweep, then confirm on the
// engine's executor that the field still resolves to value; a contradicted
// value is discarded and the sweep repeated. Fields without dependents are
// validated synchronously: the field's resolver must compute value from the
// proposed override, an unchanged value is a no-op, anything else is
// committed and followed by a sweep.
//
// The future rejects with *MutationRejected, without side effect, while
// Resolving, after Ordered, or while another confirmation is pending.
func (e *Engine[E]) SetField(name string, value ir.IRValue) *future.Future[ir.IRValue] {
	value = ir.OrNull(value)

	if rej := e.checkMutable(name); rej != nil {
		return e.reject(rej)
	}
	if e.graph.HasDependents(name) {
		return e.setDependent(name, value)
	}
	return e.setLeaf(name, value)
}

func (e *Engine[E]) checkMutable(name string) *MutationRejected {
	switch {
	case e.state == Ordered:
		return Reject(RejectOrdered, name, "Can not set value after the order is placed")
	case e.state == Resolving:
		return Reject(RejectResolving, name, "Can not set value when resolves are running")
	case e.pending != "":
		return Reject(RejectInFlight, name, fmt.Sprintf("Can not set value while %s is awaiting confirmation", e.pending))
	case !e.graph.Has(name):
		return Reject(RejectUnknownField, name, fmt.Sprintf("Unknown field %s", name))
	}
	return nil
}

func (e *Engine[E]) setLeaf(name string, value ir.IRValue) *future.Future[ir.IRValue] {
	prev, resolved := e.values[name]
	restore := e.stage(name, value)

	node, _ := e.graph.Node(name)
	computed, failure := e.resolve(node)
	if !ir.Equal(computed, value) {
		restore()
		return e.reject(Reject(RejectMismatch, name, "Field resolver returns different value"))
	}
	if resolved && ir.Equal(prev, value) {
		restore()
		e.opts.logger.Debug("set field unchanged", "field", name)
		return future.Resolved(value)
	}

	e.values[name] = value
	e.sweep(name, name, failure)
	return future.Resolved(value)
}

func (e *Engine[E]) setDependent(name string, value ir.IRValue) *future.Future[ir.IRValue] {
	restore := e.stage(name, value)
	e.sweep(name, "", nil)

	e.pending = name
	return future.Defer(e.opts.exec, func() (ir.IRValue, error) {
		e.pending = ""
		if ir.Equal(e.Value(name), value) {
			return value, nil
		}

		restore()
		if e.state == Idle {
			e.sweep(name, "", nil)
		}
		rej := Reject(RejectContradicted, name, fmt.Sprintf("Can not change %s field", name))
		e.logRejection(rej)
		return nil, rej
	})
}

// stage writes a proposed override and returns a func restoring the previous one.
func (e *Engine[E]) stage(name string, value ir.IRValue) func() {
	prev, had := e.overrides[name]
	e.overrides[name] = value
	return func() {
		if had {
			e.overrides[name] = prev
		} else {
			delete(e.overrides, name)
		}
	}
}

func (e *Engine[E]) reject(rej *MutationRejected) *future.Future[ir.IRValue] {
	e.logRejection(rej)
	return future.Reject[ir.IRValue](rej)
}

func (e *Engine[E]) logRejection(rej *MutationRejected) {
	e.opts.logger.Info("mutation rejected",
		"field", rej.Field,
		"code", string(rej.Code),
		"reason", rej.Message,
	)
	recordRejection(context.Background(), e.opts.name, rej.Code)
	e.notify(Event{Kind: EventRejected, Field: rej.Field, Rejection: rej})
}

// sweep evaluates every field in order. skip names a field whose value the
// caller already committed; skipFailure is the failure its resolver reported.
func (e *Engine[E]) sweep(changed, skip string, skipFailure *ValidationError) {
	e.mustTransition(Resolving)
	defer func() {
		if r := recover(); r != nil {
			e.state = Idle
			panic(r)
		}
	}()
	seq := e.opts.clock.Next()

	var failures []*ValidationError
	for _, n := range e.order {
		if n.Name == skip {
			if skipFailure != nil {
				failures = append(failures, skipFailure)
			}
			continue
		}
		v, failure := e.resolve(n)
		e.values[n.Name] = v
		if failure != nil {
			failures = append(failures, failure)
		}
	}
	e.failures = failures
	e.mustTransition(Idle)

	e.opts.logger.Debug("sweep completed",
		slog.Int64("seq", seq),
		slog.String("changed", changed),
		slog.Int("failures", len(failures)),
	)
	recordSweep(context.Background(), e.opts.name, len(failures))
	e.notify(Event{Kind: EventSwept, Seq: seq, Field: changed, Failures: slices.Clone(failures)})
}

func (e *Engine[E]) resolve(n graph.Node[Resolver[E]]) (ir.IRValue, *ValidationError) {
	v := view{field: n.Name, deps: n.DependsOn, values: e.values, overrides: e.overrides}
	resolve := n.Value
	if resolve == nil {
		resolve = Passthrough[E]
	}

	val, err := resolve(v, e.env)
	val = ir.OrNull(val)
	if err == nil {
		return val, nil
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		failure := *ve
		if failure.Field == "" {
			failure.Field = n.Name
		}
		return val, &failure
	}
	return val, &ValidationError{Field: n.Name, Message: err.Error(), Cause: err}
}

// MarkOrdered moves the engine to its terminal state. Legal only from Idle
// with no pending confirmation.
func (e *Engine[E]) MarkOrdered(orderID int64) error {
	if e.pending != "" {
		return fmt.Errorf("mark ordered while %s is pending: %w", e.pending, ErrIllegalTransition)
	}
	if err := e.transition(Ordered); err != nil {
		return err
	}
	e.orderID = orderID
	e.opts.logger.Info("record ordered", "order_id", orderID)
	e.notify(Event{Kind: EventOrdered, Seq: e.opts.clock.Next(), OrderID: orderID})
	return nil
}

// Reset clears overrides, values and failures. Legal only from Idle.
func (e *Engine[E]) Reset() error {
	if e.state != Idle || e.pending != "" {
		return fmt.Errorf("reset in state %s: %w", e.state, ErrIllegalTransition)
	}
	e.overrides = make(map[string]ir.IRValue)
	e.values = make(map[string]ir.IRValue, e.graph.Len())
	e.failures = nil
	return nil
}

func (e *Engine[E]) notify(ev Event) {
	ev.Session = e.opts.session
	for _, obs := range e.opts.observers {
		obs(ev)
	}
}
