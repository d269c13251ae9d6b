package harness

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/svcrt/internal/canonical"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures what a scenario run observed: step outcomes and,
// per execution, the host-call trace, per-primitive counts and scheduled
// operations. It serializes to canonical JSON for byte-wise comparison.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to plain values for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Result.Steps))
	for i, step := range s.Result.Steps {
		m := map[string]any{
			"index": step.Index,
			"kind":  step.Kind,
		}
		if step.Call != "" {
			m["call"] = step.Call
		}
		if step.Abort != "" {
			m["abort"] = step.Abort
		}
		if step.Value != nil {
			m["value"] = step.Value
		}
		steps[i] = m
	}

	executions := make([]any, len(s.Result.Executions))
	for i, e := range s.Result.Executions {
		trace := make([]any, len(e.Trace))
		for j, event := range e.Trace {
			trace[j] = event.Canonical()
		}
		calls := make(map[string]any, len(e.Calls))
		for p, n := range e.Calls {
			calls[p] = n
		}
		ops := make([]any, len(e.Operations))
		for j, op := range e.Operations {
			ops[j] = hex.EncodeToString(op.Payload)
		}
		executions[i] = map[string]any{
			"id":         e.ID,
			"trace":      trace,
			"calls":      calls,
			"operations": ops,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"executions":    executions,
	}
}

// Snapshot returns the canonical JSON form of a scenario result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Result: result}
	return canonical.Marshal(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
