package engine

import (
	"fmt"

	"github.com/roach88/cartflow/internal/graph"
	"github.com/roach88/cartflow/internal/ir"
)

// Resolver computes a field's value from a read-only view of its declared
// dependencies and an injected environment.
//
// A resolver may return both a value and a failure: the value is stored
// either way (a nil value is stored as IRNull) and the failure is captured
// as a *ValidationError for the field.
type Resolver[E any] func(v View, env E) (ir.IRValue, error)

// Field declares one named field.
// A nil Resolve makes the field a plain stored value: it resolves to its
// override, or IRNull.
type Field[E any] struct {
	Name      string
	DependsOn []string
	Resolve   Resolver[E]
}

// Graph is a sorted field graph whose node payloads are resolvers.
type Graph[E any] = graph.Graph[Resolver[E]]

// Registrar contributes fields to a graph before it is built.
type Registrar[E any] = graph.Registrar[Resolver[E]]

// Compile builds a sorted graph from fields, then applies registrars in
// order. Registrars may add new fields or replace existing ones.
//
// Returns *graph.CycleError if the dependencies contain a cycle; no engine
// can be created from a graph that fails to compile.
func Compile[E any](fields []Field[E], registrars ...Registrar[E]) (*Graph[E], error) {
	b := graph.NewBuilder[Resolver[E]]()
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, &graph.DuplicateFieldError{Field: f.Name}
		}
		seen[f.Name] = true
		if err := b.Declare(f.Name, f.DependsOn, f.Resolve); err != nil {
			return nil, err
		}
	}
	for _, r := range registrars {
		if err := b.Use(r); err != nil {
			return nil, err
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("compile fields: %w", err)
	}
	return g, nil
}

// Declare adds f to a builder, for use inside a Registrar.
func Declare[E any](b *graph.Builder[Resolver[E]], f Field[E]) error {
	return b.Declare(f.Name, f.DependsOn, f.Resolve)
}

// View is the read-only input a resolver sees.
//
// Get and Lookup only expose the field's declared dependencies, which the
// sweep guarantees are already resolved. Override exposes the raw value a
// caller supplied for any field, if one exists.
type View interface {
	// Field is the name of the field being resolved.
	Field() string

	// Get returns a dependency's value, or IRNull when it is not a declared
	// dependency.
	Get(name string) ir.IRValue

	// Lookup is like Get but reports whether name is a declared dependency.
	Lookup(name string) (ir.IRValue, bool)

	// Override returns the raw caller-supplied value for name.
	Override(name string) (ir.IRValue, bool)

	// Self returns the field's own override, or IRNull.
	Self() ir.IRValue
}

type view struct {
	field     string
	deps      []string
	values    map[string]ir.IRValue
	overrides map[string]ir.IRValue
}

func (v view) Field() string { return v.field }

func (v view) Get(name string) ir.IRValue {
	val, _ := v.Lookup(name)
	return val
}

func (v view) Lookup(name string) (ir.IRValue, bool) {
	for _, d := range v.deps {
		if d == name {
			return ir.OrNull(v.values[name]), true
		}
	}
	return ir.Null, false
}

func (v view) Override(name string) (ir.IRValue, bool) {
	val, ok := v.overrides[name]
	if !ok {
		return ir.Null, false
	}
	return ir.OrNull(val), true
}

func (v view) Self() ir.IRValue {
	val, _ := v.Override(v.field)
	return val
}

// Passthrough resolves a field to its own override, or IRNull.
func Passthrough[E any](v View, _ E) (ir.IRValue, error) {
	return v.Self(), nil
}
