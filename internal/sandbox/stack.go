package sandbox

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/svcrt/internal/base"
)

// DefaultMaxDepth bounds cross-application query nesting.
const DefaultMaxDepth = 16

// StackErrorCode categorizes call-stack violations.
type StackErrorCode string

const (
	// ErrCodeCycleDetected indicates an application queried itself through
	// the call stack.
	ErrCodeCycleDetected StackErrorCode = "CYCLE_DETECTED"

	// ErrCodeDepthExceeded indicates nesting beyond the configured maximum.
	ErrCodeDepthExceeded StackErrorCode = "DEPTH_EXCEEDED"
)

// StackError reports a cross-application call the host refuses to make.
type StackError struct {
	Code        StackErrorCode
	Application base.ApplicationID
	Depth       int
	Limit       int
	Stack       []base.ApplicationID
}

func (e *StackError) Error() string {
	switch e.Code {
	case ErrCodeDepthExceeded:
		return fmt.Sprintf("%s: query to %s would reach depth %d > %d limit",
			e.Code, e.Application, e.Depth, e.Limit)
	default:
		return fmt.Sprintf("%s: application %s is already on the call stack at depth %d",
			e.Code, e.Application, e.Depth)
	}
}

// IsCycleError reports whether err is a cycle violation.
func IsCycleError(err error) bool {
	var se *StackError
	return errors.As(err, &se) && se.Code == ErrCodeCycleDetected
}

// IsDepthError reports whether err is a depth violation.
func IsDepthError(err error) bool {
	var se *StackError
	return errors.As(err, &se) && se.Code == ErrCodeDepthExceeded
}

// callStack tracks the applications currently answering queries.
//
// The bottom entry is the application running the top-level query. A
// dispatch pushes the target before its handler runs and pops it after.
// Two checks guard every push:
//   - cycle: the target is already on the stack (A → B → A)
//   - depth: the stack would exceed maxDepth (A → B → C → ... → Z)
//
// Together they guarantee that a query terminates.
type callStack struct {
	apps     []base.ApplicationID
	maxDepth int
}

func newCallStack(root base.ApplicationID, maxDepth int) *callStack {
	return &callStack{apps: []base.ApplicationID{root}, maxDepth: maxDepth}
}

// push records entry into app or returns the violation that prevents it.
func (s *callStack) push(app base.ApplicationID) error {
	if i := slices.Index(s.apps, app); i >= 0 {
		return &StackError{
			Code:        ErrCodeCycleDetected,
			Application: app,
			Depth:       i,
			Limit:       s.maxDepth,
			Stack:       slices.Clone(s.apps),
		}
	}
	if len(s.apps) > s.maxDepth {
		return &StackError{
			Code:        ErrCodeDepthExceeded,
			Application: app,
			Depth:       len(s.apps),
			Limit:       s.maxDepth,
			Stack:       slices.Clone(s.apps),
		}
	}
	s.apps = append(s.apps, app)
	return nil
}

func (s *callStack) pop() {
	if len(s.apps) > 1 {
		s.apps = s.apps[:len(s.apps)-1]
	}
}

// current returns the application answering the innermost query.
func (s *callStack) current() base.ApplicationID {
	return s.apps[len(s.apps)-1]
}

// depth is the number of dispatches in progress.
func (s *callStack) depth() int {
	return len(s.apps) - 1
}

// reset rebinds the stack to a new root.
func (s *callStack) reset(root base.ApplicationID) {
	s.apps = []base.ApplicationID{root}
}
