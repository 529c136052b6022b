package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cartflow/internal/cart"
)

// FieldsResult is the JSON payload of the fields command.
type FieldsResult struct {
	Order []string            `json:"order"`
	Edges map[string][]string `json:"edges"`
	Hash  string              `json:"hash"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "Print the cart field evaluation order",
		Long: `Compile the cart field graph and print it.

Formats:
  text     evaluation order with each field's dependencies
  json     order, dependency edges and graph hash
  dot      Graphviz digraph
  mermaid  Mermaid flowchart

Example:
  cartflow fields
  cartflow fields --format dot | dot -Tsvg > fields.svg`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(rootOpts, cmd)
		},
	}
}

func runFields(opts *RootOptions, cmd *cobra.Command) error {
	g, err := cart.Compile()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compile cart fields", err)
	}

	w := cmd.OutOrStdout()
	switch opts.Format {
	case "json":
		return opts.formatter(cmd).Success(FieldsResult{Order: g.Order(), Edges: g.Edges(), Hash: g.Hash()})
	case "dot":
		_, err = io.WriteString(w, g.DOT())
	case "mermaid":
		_, err = io.WriteString(w, g.Mermaid())
	default:
		edges := g.Edges()
		for i, name := range g.Order() {
			if deps := edges[name]; len(deps) > 0 {
				fmt.Fprintf(w, "%2d. %s <- %s\n", i+1, name, strings.Join(deps, ", "))
			} else {
				fmt.Fprintf(w, "%2d. %s\n", i+1, name)
			}
		}
	}
	return err
}
