package engine

import (
	"fmt"
	"slices"
)

// State is the engine lifecycle state.
type State int

const (
	// Idle accepts mutations and sweeps.
	Idle State = iota
	// Resolving means a sweep is running; mutations and nested sweeps are refused.
	Resolving
	// Ordered is terminal; the record has been committed.
	Ordered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Ordered:
		return "ordered"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var legalTransitions = map[State][]State{
	Idle:      {Resolving, Ordered},
	Resolving: {Idle},
	Ordered:   {},
}

func isAllowedTransition(from, to State) bool {
	return slices.Contains(legalTransitions[from], to)
}

func (e *Engine[E]) transition(to State) error {
	if !isAllowedTransition(e.state, to) {
		return fmt.Errorf("%s -> %s: %w", e.state, to, ErrIllegalTransition)
	}
	e.state = to
	return nil
}

// mustTransition is for internal transitions already guarded by the caller.
func (e *Engine[E]) mustTransition(to State) {
	if err := e.transition(to); err != nil {
		panic(err)
	}
}
