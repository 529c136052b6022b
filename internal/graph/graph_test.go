package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(decls ...[]string) []Node[int] {
	out := make([]Node[int], len(decls))
	for i, d := range decls {
		out[i] = Node[int]{Name: d[0], DependsOn: d[1:], Value: i}
	}
	return out
}

func TestBuildOrderRespectsDependencies(t *testing.T) {
	g, err := Build(nodes(
		[]string{"grand_total", "sub_total", "tax_amount"},
		[]string{"sub_total", "items"},
		[]string{"items"},
		[]string{"tax_amount", "items"},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"items", "sub_total", "tax_amount", "grand_total"}, g.Order())
}

func TestBuildTieBreakIsDeclarationOrder(t *testing.T) {
	g, err := Build(nodes(
		[]string{"currency"},
		[]string{"cart_id"},
		[]string{"status"},
		[]string{"coupon"},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"currency", "cart_id", "status", "coupon"}, g.Order())
}

func TestBuildDeterministic(t *testing.T) {
	decls := nodes(
		[]string{"a"},
		[]string{"b", "a"},
		[]string{"c", "a"},
		[]string{"d", "b", "c"},
		[]string{"e"},
	)

	first, err := Build(decls)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		g, err := Build(decls)
		require.NoError(t, err)
		assert.Equal(t, first.Order(), g.Order())
		assert.Equal(t, first.Hash(), g.Hash())
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, first.Order())
}

// TestBuildTopologicalProperty checks random acyclic graphs: every field
// appears after all of its dependencies.
func TestBuildTopologicalProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 100; trial++ {
		n := 2 + rng.Intn(20)
		decls := make([]Node[int], n)
		for i := 0; i < n; i++ {
			var deps []string
			// only depend on lower-numbered fields, so the graph is acyclic
			for j := 0; j < i; j++ {
				if rng.Intn(4) == 0 {
					deps = append(deps, fmt.Sprintf("f%d", j))
				}
			}
			decls[i] = Node[int]{Name: fmt.Sprintf("f%d", i), DependsOn: deps}
		}
		// shuffle declaration order
		rng.Shuffle(n, func(i, j int) { decls[i], decls[j] = decls[j], decls[i] })

		g, err := Build(decls)
		require.NoError(t, err)

		pos := make(map[string]int)
		for i, name := range g.Order() {
			pos[name] = i
		}
		require.Len(t, pos, n)
		for _, d := range decls {
			for _, dep := range d.DependsOn {
				assert.Less(t, pos[dep], pos[d.Name], "%s must follow %s", d.Name, dep)
			}
		}
	}
}

func TestBuildCycle(t *testing.T) {
	tests := []struct {
		name         string
		decls        []Node[int]
		participants []string
		path         []string
	}{
		{
			name:         "two-node cycle",
			decls:        nodes([]string{"a", "b"}, []string{"b", "a"}),
			participants: []string{"a", "b"},
			path:         []string{"a", "b", "a"},
		},
		{
			name:         "self loop",
			decls:        nodes([]string{"x"}, []string{"a", "a"}),
			participants: []string{"a"},
			path:         []string{"a", "a"},
		},
		{
			name: "cycle behind acyclic prefix",
			decls: nodes(
				[]string{"root"},
				[]string{"p", "root", "r"},
				[]string{"q", "p"},
				[]string{"r", "q"},
				[]string{"leaf", "p"},
			),
			participants: []string{"p", "q", "r"},
			path:         []string{"p", "r", "q", "p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.decls)
			require.Error(t, err)
			assert.True(t, IsCycleError(err))

			var ce *CycleError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.participants, ce.Participants)
			assert.Equal(t, tt.path, ce.Path)
			assert.Contains(t, err.Error(), string(ErrCodeCycle))
		})
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	_, err := Build(nodes([]string{"sub_total", "items"}))

	var ue *UnknownDependencyError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "sub_total", ue.Field)
	assert.Equal(t, "items", ue.Dependency)
}

func TestBuildDuplicateField(t *testing.T) {
	_, err := Build(nodes([]string{"coupon"}, []string{"coupon"}))

	var de *DuplicateFieldError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "coupon", de.Field)
}

func TestDependents(t *testing.T) {
	g, err := Build(nodes(
		[]string{"shipping_method"},
		[]string{"shipping_method_name", "shipping_method"},
		[]string{"shipping_fee", "shipping_method", "shipping_method"},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"shipping_method_name", "shipping_fee"}, g.Dependents("shipping_method"))
	assert.True(t, g.HasDependents("shipping_method"))
	assert.False(t, g.HasDependents("shipping_method_name"))
	assert.False(t, g.HasDependents("missing"))
	assert.Nil(t, g.Dependents("missing"))

	n, ok := g.Node("shipping_fee")
	require.True(t, ok)
	assert.Equal(t, []string{"shipping_method"}, n.DependsOn, "duplicate deps are collapsed")
	assert.Equal(t, 2, n.Value)
}

func TestExport(t *testing.T) {
	g, err := Build(nodes([]string{"b", "a"}, []string{"a"}))
	require.NoError(t, err)

	assert.Equal(t, "digraph fields {\n  rankdir=LR;\n  n0 [label=\"a\"];\n  n1 [label=\"b\"];\n  n0 -> n1;\n}\n", g.DOT())
	assert.Equal(t, "graph TD\n    n0[\"a\"]\n    n1[\"b\"]\n    n0 --> n1\n", g.Mermaid())
}

func TestBuilderExtension(t *testing.T) {
	b := NewBuilder[int]()
	require.NoError(t, b.Declare("items", nil, 1))
	require.NoError(t, b.Declare("sub_total", []string{"items"}, 2))
	require.NoError(t, b.Use(RegistrarFunc[int](func(b *Builder[int]) error {
		if err := b.Declare("gift_wrap_fee", []string{"sub_total"}, 3); err != nil {
			return err
		}
		// replace keeps original position
		return b.Declare("items", nil, 10)
	})))

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"items", "sub_total", "gift_wrap_fee"}, g.Order())

	n, _ := g.Node("items")
	assert.Equal(t, 10, n.Value)

	assert.True(t, b.Frozen())
	assert.ErrorIs(t, b.Declare("late", nil, 0), ErrFrozen)
	assert.ErrorIs(t, b.Remove("items"), ErrFrozen)
	assert.ErrorIs(t, b.Use(RegistrarFunc[int](func(*Builder[int]) error { return nil })), ErrFrozen)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrFrozen)
}

func TestBuilderRemove(t *testing.T) {
	b := NewBuilder[int]()
	require.NoError(t, b.Declare("a", nil, 0))
	require.NoError(t, b.Declare("b", nil, 0))
	require.NoError(t, b.Remove("a"))
	require.NoError(t, b.Remove("never-declared"))
	assert.Equal(t, []string{"b"}, b.Names())
}

func TestBuilderRegistrarError(t *testing.T) {
	b := NewBuilder[int]()
	boom := errors.New("boom")
	require.NoError(t, b.Use(RegistrarFunc[int](func(*Builder[int]) error { return boom })))

	_, err := b.Build()
	assert.ErrorIs(t, err, boom)
	assert.True(t, b.Frozen())
}

func TestBuilderCycleIsFatal(t *testing.T) {
	b := NewBuilder[int]()
	require.NoError(t, b.Declare("a", []string{"b"}, 0))
	require.NoError(t, b.Declare("b", []string{"a"}, 0))

	g, err := b.Build()
	assert.Nil(t, g)
	assert.True(t, IsCycleError(err))
}
