package harness

import (
	"encoding/json"

	"github.com/roach88/svcrt/internal/sandbox"
	"github.com/roach88/svcrt/internal/store"
)

// Step kinds reported in results.
const (
	StepCall         = "call"
	StepMutate       = "mutate"
	StepNewExecution = "new_execution"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Call  string `json:"call,omitempty"`

	// Value is the canonical JSON of the call result. Empty for calls
	// without a result and for aborted calls.
	Value json.RawMessage `json:"value,omitempty"`

	// Abort is the code of the abort the call raised, if any.
	Abort string `json:"abort,omitempty"`
}

// Execution is the host-side record of one execution.
type Execution struct {
	ID         string               `json:"id"`
	Trace      []sandbox.TraceEvent `json:"trace"`
	Calls      map[string]int       `json:"calls"`
	Operations []store.Operation    `json:"operations"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expectations and assertions hold.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Executions are in the order they ran.
	Executions []Execution `json:"executions"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Steps:      []StepResult{},
		Executions: []Execution{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Trace returns the events of every execution in order.
func (r *Result) Trace() []sandbox.TraceEvent {
	var out []sandbox.TraceEvent
	for _, e := range r.Executions {
		out = append(out, e.Trace...)
	}
	return out
}

// Operations returns the operations of every execution in order.
func (r *Result) Operations() []store.Operation {
	var out []store.Operation
	for _, e := range r.Executions {
		out = append(out, e.Operations...)
	}
	return out
}
