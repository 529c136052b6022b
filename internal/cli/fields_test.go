package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartflow/internal/cart"
)

func TestFieldsText(t *testing.T) {
	out, _, err := execute(t, "fields")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	g, err := cart.Compile()
	require.NoError(t, err)
	require.Len(t, lines, g.Len())

	assert.Equal(t, " 1. cart_id", lines[0])
	assert.Contains(t, out, "sub_total <- items\n")
	assert.Contains(t, out, "shipping_method_name <- shipping_method\n")
}

func TestFieldsJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "fields")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   FieldsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	g, err := cart.Compile()
	require.NoError(t, err)
	assert.Equal(t, g.Order(), resp.Data.Order)
	assert.Equal(t, g.Hash(), resp.Data.Hash)
	assert.Equal(t, []string{cart.Items}, resp.Data.Edges[cart.SubTotal])
}

func TestFieldsGraphExports(t *testing.T) {
	dot, _, err := execute(t, "--format", "dot", "fields")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dot, "digraph fields {"))
	assert.Contains(t, dot, `[label="grand_total"]`)

	mermaid, _, err := execute(t, "--format", "mermaid", "fields")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mermaid, "graph TD\n"))
	assert.Contains(t, mermaid, `["grand_total"]`)
}
