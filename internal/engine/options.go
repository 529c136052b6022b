package engine

import (
	"log/slog"

	"github.com/roach88/cartflow/internal/future"
)

// EventKind names an engine lifecycle event.
type EventKind string

const (
	// EventSwept is emitted after every completed sweep.
	EventSwept EventKind = "swept"
	// EventRejected is emitted for every rejected mutation.
	EventRejected EventKind = "rejected"
	// EventOrdered is emitted once, when the engine becomes Ordered.
	EventOrdered EventKind = "ordered"
)

// Event describes something that happened to an engine.
type Event struct {
	Kind    EventKind
	Seq     int64
	Session string

	// Field is the mutated field for swept/rejected events ("" for a full resolve).
	Field string

	// Failures captured by the sweep.
	Failures []*ValidationError

	Rejection *MutationRejected
	OrderID   int64
}

// Observer receives engine events synchronously, in registration order.
type Observer func(Event)

type options struct {
	name      string
	session   string
	logger    *slog.Logger
	exec      future.Executor
	clock     Sequencer
	observers []Observer
}

func defaultOptions() options {
	return options{
		name:   "engine",
		logger: slog.Default(),
		exec:   future.Immediate,
		clock:  NewClock(),
	}
}

// Option configures an Engine.
type Option func(*options)

// WithName labels the engine in logs and metrics ("cart", "item").
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSession attaches a session token to every log line and event.
func WithSession(token string) Option {
	return func(o *options) { o.session = token }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithExecutor sets the executor for deferred confirmations.
// Default: future.Immediate.
func WithExecutor(exec future.Executor) Option {
	return func(o *options) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithClock sets the sequencer that stamps sweeps.
func WithClock(c Sequencer) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithObserver registers an observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}
