// Package cell provides the single-slot memoizing cache used by the runtime
// facade to hold one host-provided fact for the lifetime of a query execution.
package cell

import (
	"github.com/roach88/svcrt/internal/abort"
)

type state uint8

const (
	stateEmpty state = iota
	statePopulating
	statePopulated
)

// Cell holds at most one value, populated lazily by GetOrInit.
//
// A Cell moves from empty to populated exactly once and is never reset. The
// transient populating state exists only while fetch runs; observing it from
// GetOrInit means fetch re-entered its own cell, which is reported as a
// REENTRANT_FETCH abort instead of blocking.
//
// Cells are owned by a single execution and are not safe for concurrent use.
type Cell[T any] struct {
	name  string
	state state
	value T
	clone func(T) T
}

// New creates an empty cell for a value type whose plain copy is independent.
func New[T any](name string) *Cell[T] {
	return &Cell[T]{name: name}
}

// NewWithClone creates an empty cell whose reads are duplicated with clone.
// Use it for values that carry references, such as slices or maps.
func NewWithClone[T any](name string, clone func(T) T) *Cell[T] {
	return &Cell[T]{name: name, clone: clone}
}

// Name returns the fact name the cell was created with.
func (c *Cell[T]) Name() string {
	return c.name
}

// Populated reports whether the cell holds a value.
func (c *Cell[T]) Populated() bool {
	return c.state == statePopulated
}

// GetOrInit returns the cached value, calling fetch only if the cell is empty.
//
// If fetch aborts, the cell returns to empty so that the abort, not a
// spurious reentrancy report, is what the execution boundary observes.
func (c *Cell[T]) GetOrInit(fetch func() T) T {
	switch c.state {
	case statePopulated:
		return c.dup(c.value)
	case statePopulating:
		abort.Throw(abort.New(
			abort.CodeReentrantFetch,
			"cell fetch re-entered the cell it is populating",
			nil,
		).With("cell", c.name))
	}

	c.state = statePopulating
	defer func() {
		if c.state == statePopulating {
			c.state = stateEmpty
		}
	}()

	c.value = fetch()
	c.state = statePopulated
	return c.dup(c.value)
}

func (c *Cell[T]) dup(v T) T {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}
