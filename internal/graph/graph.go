package graph

import (
	"container/heap"
	"slices"

	"github.com/roach88/cartflow/internal/ir"
)

// Node is one field declaration: a unique name, the names it reads, and an
// opaque payload (the engine stores its resolver here).
type Node[T any] struct {
	Name      string
	DependsOn []string
	Value     T
}

// Graph is an immutable, topologically sorted set of field declarations.
//
// Evaluation order respects every dependency edge. Ties between fields that
// are independent of each other are broken by declaration order, so the same
// declarations always produce the same order.
type Graph[T any] struct {
	nodes      []Node[T] // declaration order
	index      map[string]int
	order      []int   // evaluation order, indices into nodes
	dependents [][]int // dependents[i] = nodes that read nodes[i], ascending
}

// Build validates declarations and sorts them.
//
// Returns *DuplicateFieldError, *UnknownDependencyError or *CycleError.
// Duplicate dependency names on one node are collapsed.
func Build[T any](nodes []Node[T]) (*Graph[T], error) {
	g := &Graph[T]{
		nodes:      make([]Node[T], len(nodes)),
		index:      make(map[string]int, len(nodes)),
		dependents: make([][]int, len(nodes)),
	}

	for i, n := range nodes {
		if _, exists := g.index[n.Name]; exists {
			return nil, &DuplicateFieldError{Field: n.Name}
		}
		g.index[n.Name] = i
		g.nodes[i] = Node[T]{Name: n.Name, DependsOn: dedupe(n.DependsOn), Value: n.Value}
	}

	indeg := make([]int, len(nodes))
	for i, n := range g.nodes {
		for _, dep := range n.DependsOn {
			j, ok := g.index[dep]
			if !ok {
				return nil, &UnknownDependencyError{Field: n.Name, Dependency: dep}
			}
			g.dependents[j] = append(g.dependents[j], i)
			indeg[i]++
		}
	}
	for i := range g.dependents {
		slices.Sort(g.dependents[i])
	}

	g.order = g.topoOrder(indeg)
	if len(g.order) != len(g.nodes) {
		return nil, &CycleError{
			Participants: g.cycleParticipants(),
			Path:         g.findCycle(),
		}
	}
	return g, nil
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm with a ready queue ordered by declaration
// index. Returns fewer than len(nodes) indices when a cycle exists.
func (g *Graph[T]) topoOrder(indeg []int) []int {
	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// cycleParticipants returns every field on a cycle using Tarjan's strongly
// connected components. Components of size one only count with a self-loop.
func (g *Graph[T]) cycleParticipants() []string {
	var (
		counter int
		stack   []int
		indices = make([]int, len(g.nodes))
		lowlink = make([]int, len(g.nodes))
		onStack = make([]bool, len(g.nodes))
		inCycle = make([]bool, len(g.nodes))
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.dependents[v] {
			if indices[w] == -1 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}
		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 || slices.Contains(g.dependents[v], v) {
			for _, w := range scc {
				inCycle[w] = true
			}
		}
	}

	for i := range g.nodes {
		if indices[i] == -1 {
			strongConnect(i)
		}
	}

	var out []string
	for i, ok := range inCycle {
		if ok {
			out = append(out, g.nodes[i].Name)
		}
	}
	return out
}

// findCycle performs a deterministic DFS along dependency edges and returns
// one closed witness path, such as [a b a] for "a depends on b, b on a".
func (g *Graph[T]) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, dep := range g.nodes[u].DependsOn {
			v := g.index[dep]
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// back-edge u -> v; walk parents from u back to v
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = g.nodes[cycle[len(cycle)-1-i]].Name
	}
	return out
}

// Len returns the number of fields.
func (g *Graph[T]) Len() int { return len(g.nodes) }

// Order returns field names in evaluation order.
func (g *Graph[T]) Order() []string {
	out := make([]string, len(g.order))
	for i, idx := range g.order {
		out[i] = g.nodes[idx].Name
	}
	return out
}

// Sorted returns the nodes in evaluation order.
func (g *Graph[T]) Sorted() []Node[T] {
	out := make([]Node[T], len(g.order))
	for i, idx := range g.order {
		out[i] = g.nodes[idx]
	}
	return out
}

// Node returns the declaration for name.
func (g *Graph[T]) Node(name string) (Node[T], bool) {
	i, ok := g.index[name]
	if !ok {
		return Node[T]{}, false
	}
	return g.nodes[i], true
}

// Has reports whether name is declared.
func (g *Graph[T]) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Dependents returns the fields that directly read name, in declaration order.
func (g *Graph[T]) Dependents(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(g.dependents[i]))
	for k, j := range g.dependents[i] {
		out[k] = g.nodes[j].Name
	}
	return out
}

// HasDependents reports whether any field reads name.
func (g *Graph[T]) HasDependents(name string) bool {
	i, ok := g.index[name]
	return ok && len(g.dependents[i]) > 0
}

// Edges returns name → declared dependencies for every field.
func (g *Graph[T]) Edges() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		out[n.Name] = slices.Clone(n.DependsOn)
	}
	return out
}

// Hash returns a stable content hash of the graph's order and edges.
func (g *Graph[T]) Hash() string {
	h, err := ir.GraphHash(g.Order(), g.Edges())
	if err != nil {
		// names and edges are plain strings; marshaling cannot fail
		panic(err)
	}
	return h
}
