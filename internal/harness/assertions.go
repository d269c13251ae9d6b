package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/svcrt/internal/codec"
	"github.com/roach88/svcrt/internal/sandbox"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string               // Assertion type for categorization
	Expected string               // Human-readable expected outcome
	Actual   string               // Human-readable actual outcome
	Trace    []sandbox.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s%s %s %s\n",
				event.Seq,
				strings.Repeat("  ", event.Depth),
				event.Application,
				event.Primitive,
				event.CanonicalDetail(),
			)
		}
	}

	return buf.String()
}

// assertHostCalls checks that a primitive was invoked exactly Count times,
// in one execution or across all of them.
func assertHostCalls(result *Result, assertion Assertion) error {
	executions := result.Executions
	scope := "all executions"
	if assertion.Execution > 0 {
		if assertion.Execution > len(executions) {
			return &AssertionError{
				Type:     AssertHostCalls,
				Expected: fmt.Sprintf("execution %d", assertion.Execution),
				Actual:   fmt.Sprintf("%d executions ran", len(executions)),
			}
		}
		executions = executions[assertion.Execution-1 : assertion.Execution]
		scope = fmt.Sprintf("execution %d", assertion.Execution)
	}

	count := 0
	var trace []sandbox.TraceEvent
	for _, e := range executions {
		count += e.Calls[assertion.Primitive]
		trace = append(trace, e.Trace...)
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertHostCalls,
			Expected: fmt.Sprintf("%d calls to %s in %s", assertion.Count, assertion.Primitive, scope),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that primitives appear in the specified order.
// They don't need to be consecutive (intervening calls are allowed).
func assertTraceOrder(trace []sandbox.TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Primitives) && string(event.Primitive) == assertion.Primitives[next] {
			next++
		}
	}

	if next < len(assertion.Primitives) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("primitives in order: %v", assertion.Primitives),
			Actual:   fmt.Sprintf("%s not found after %v", assertion.Primitives[next], assertion.Primitives[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertOperations checks the scheduled operations against the expected
// values, compared in canonical binary form.
func assertOperations(result *Result, assertion Assertion) error {
	ops := result.Operations()

	if len(ops) != len(assertion.Operations) {
		return &AssertionError{
			Type:     AssertOperations,
			Expected: fmt.Sprintf("%d operations", len(assertion.Operations)),
			Actual:   fmt.Sprintf("%d operations", len(ops)),
		}
	}

	for i, want := range assertion.Operations {
		payload, err := codec.EncodeBinary(want)
		if err != nil {
			return fmt.Errorf("operations[%d]: %w", i, err)
		}
		if !bytes.Equal(payload, ops[i].Payload) {
			return &AssertionError{
				Type:     AssertOperations,
				Expected: fmt.Sprintf("operation %d = %s", i, hex.EncodeToString(payload)),
				Actual:   fmt.Sprintf("operation %d = %s", i, hex.EncodeToString(ops[i].Payload)),
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertHostCalls:
			err = assertHostCalls(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace(), assertion)
		case AssertOperations:
			err = assertOperations(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
