package graph

import (
	"fmt"
	"slices"
	"sync"
)

// Registrar contributes additional declarations before a graph is built.
// It is the extension point collaborators use to add or replace fields.
type Registrar[T any] interface {
	RegisterFields(b *Builder[T]) error
}

// RegistrarFunc adapts a function to the Registrar interface.
type RegistrarFunc[T any] func(b *Builder[T]) error

// RegisterFields calls f(b).
func (f RegistrarFunc[T]) RegisterFields(b *Builder[T]) error { return f(b) }

// Builder accumulates declarations until Build freezes them.
//
// Declaring an existing name replaces that declaration in place, keeping its
// original position for tie-breaking.
type Builder[T any] struct {
	mu         sync.Mutex
	nodes      []Node[T]
	registrars []Registrar[T]
	frozen     bool
}

// NewBuilder creates an empty builder.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// Declare adds or replaces a field declaration.
func (b *Builder[T]) Declare(name string, dependsOn []string, value T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return fmt.Errorf("declare %q: %w", name, ErrFrozen)
	}
	n := Node[T]{Name: name, DependsOn: slices.Clone(dependsOn), Value: value}
	for i := range b.nodes {
		if b.nodes[i].Name == name {
			b.nodes[i] = n
			return nil
		}
	}
	b.nodes = append(b.nodes, n)
	return nil
}

// Remove deletes a declaration. Removing an unknown name is a no-op.
func (b *Builder[T]) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return fmt.Errorf("remove %q: %w", name, ErrFrozen)
	}
	b.nodes = slices.DeleteFunc(b.nodes, func(n Node[T]) bool { return n.Name == name })
	return nil
}

// Use queues a registrar to run during Build, after the builder's own
// declarations and in the order registrars were added.
func (b *Builder[T]) Use(r Registrar[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return fmt.Errorf("use registrar: %w", ErrFrozen)
	}
	b.registrars = append(b.registrars, r)
	return nil
}

// Names returns declared names in declaration order.
func (b *Builder[T]) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.nodes))
	for i, n := range b.nodes {
		out[i] = n.Name
	}
	return out
}

// Frozen reports whether Build has been called.
func (b *Builder[T]) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// Build runs registrars, freezes the builder and sorts the declarations.
// The builder is frozen even when Build fails.
func (b *Builder[T]) Build() (*Graph[T], error) {
	b.mu.Lock()
	if b.frozen {
		b.mu.Unlock()
		return nil, fmt.Errorf("build: %w", ErrFrozen)
	}
	registrars := slices.Clone(b.registrars)
	b.mu.Unlock()

	for i, r := range registrars {
		if err := r.RegisterFields(b); err != nil {
			b.freeze()
			return nil, fmt.Errorf("registrar %d: %w", i, err)
		}
	}

	nodes := b.freeze()
	g, err := Build(nodes)
	if err != nil {
		return nil, fmt.Errorf("build field graph: %w", err)
	}
	return g, nil
}

func (b *Builder[T]) freeze() []Node[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
	return slices.Clone(b.nodes)
}
