package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	gen := NewTokens("checkout-1")

	assert.Equal(t, "checkout-1", gen.Generate())
	assert.Equal(t, "item-1", gen.Generate())
	assert.Equal(t, "item-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "checkout-1", gen.Generate())
	assert.Equal(t, "item-1", gen.Generate())
}

func TestTokens_DefaultSession(t *testing.T) {
	assert.Equal(t, DefaultSession, NewTokens("").Generate())
}
