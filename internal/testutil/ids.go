package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator produces predictable execution ids.
//
// The first id is the base itself, later ones carry a counter:
//
//	gen := NewSequentialIDGenerator("exec-counter")
//	gen.Generate() // "exec-counter"
//	gen.Generate() // "exec-counter-2"
//
// The same scenario with the same generator produces byte-identical traces.
type SequentialIDGenerator struct {
	mu   sync.Mutex
	base string
	n    int
}

// NewSequentialIDGenerator creates a generator rooted at base.
// If base is empty, "exec-default" is used.
func NewSequentialIDGenerator(base string) *SequentialIDGenerator {
	if base == "" {
		base = "exec-default"
	}
	return &SequentialIDGenerator{base: base}
}

// Generate returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n == 1 {
		return g.base
	}
	return fmt.Sprintf("%s-%d", g.base, g.n)
}
