package graph

import (
	"fmt"
	"strings"
)

// DOT exports Graphviz DOT text. Edges point from a dependency to the field
// that reads it, following the direction values flow during a sweep.
func (g *Graph[T]) DOT() string {
	var b strings.Builder
	b.WriteString("digraph fields {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := g.aliases()
	for _, idx := range g.order {
		n := g.nodes[idx]
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", aliases[idx], escapeLabel(n.Name)))
	}
	for _, idx := range g.order {
		for _, dep := range g.nodes[idx].DependsOn {
			b.WriteString(fmt.Sprintf("  %s -> %s;\n", aliases[g.index[dep]], aliases[idx]))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g *Graph[T]) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := g.aliases()
	for _, idx := range g.order {
		n := g.nodes[idx]
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", aliases[idx], escapeLabel(n.Name)))
	}
	for _, idx := range g.order {
		for _, dep := range g.nodes[idx].DependsOn {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", aliases[g.index[dep]], aliases[idx]))
		}
	}
	return b.String()
}

// aliases numbers nodes by evaluation position: n0 is evaluated first.
func (g *Graph[T]) aliases() map[int]string {
	out := make(map[int]string, len(g.order))
	for pos, idx := range g.order {
		out[idx] = fmt.Sprintf("n%d", pos)
	}
	return out
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
