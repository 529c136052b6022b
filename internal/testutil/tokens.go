package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/cartflow/internal/engine"
)

var _ engine.TokenGenerator = (*Tokens)(nil)

// DefaultSession is the session token used when a scenario names none.
const DefaultSession = "test-session"

// Tokens hands out a fixed session token first and numbered item ids
// after it ("item-1", "item-2", ...). A cart draws its session token once
// at creation, so every later token is a line item id.
//
// Thread-safety: all methods are safe for concurrent use.
type Tokens struct {
	mu      sync.Mutex
	session string
	n       int
}

// NewTokens creates a generator whose first token is session, or
// DefaultSession when session is empty.
func NewTokens(session string) *Tokens {
	if session == "" {
		session = DefaultSession
	}
	return &Tokens{session: session}
}

// Generate returns the next token.
func (g *Tokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n == 1 {
		return g.session
	}
	return fmt.Sprintf("item-%d", g.n-1)
}

// Reset makes the next Generate return the session token again.
func (g *Tokens) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
