package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/svcrt/internal/host"
)

// Scenario defines a runtime conformance scenario.
// A scenario seeds a sandbox host, drives a runtime through a sequence of
// facade calls and asserts on the values returned and the host calls made.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ExecutionID seeds the execution id generator. Defaults to
	// "exec-default" so golden traces stay stable.
	ExecutionID string `yaml:"execution_id,omitempty"`

	// MaxDepth bounds cross-application query nesting. Zero keeps the
	// sandbox default.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// ABI is a CUE file or directory of application descriptors, relative
	// to the scenario file. Descriptors are matched to applications by name.
	ABI string `yaml:"abi,omitempty"`

	// Host is the chain state visible to the queried application.
	Host HostSetup `yaml:"host"`

	// Applications are installed for cross-application queries.
	Applications []ApplicationSetup `yaml:"applications,omitempty"`

	// Steps run in order against one runtime per execution.
	Steps []Step `yaml:"steps"`

	// Assertions validate host calls and scheduled operations.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// HostSetup seeds the sandbox store.
//
// Ids are either 64 hex characters or a label whose Keccak-256 hash is used.
type HostSetup struct {
	ChainID      string            `yaml:"chain_id"`
	Application  string            `yaml:"application"`
	Height       uint64            `yaml:"height"`
	Timestamp    uint64            `yaml:"timestamp"`
	ChainBalance string            `yaml:"chain_balance,omitempty"`
	Parameters   any               `yaml:"parameters,omitempty"`
	Balances     []BalanceSetup    `yaml:"balances,omitempty"`
	Blobs        []string          `yaml:"blobs,omitempty"`
	Storage      map[string]string `yaml:"storage,omitempty"`
	HTTP         []HTTPSetup       `yaml:"http,omitempty"`
}

// BalanceSetup credits an owner.
type BalanceSetup struct {
	Owner  string `yaml:"owner"`
	Amount string `yaml:"amount"`
}

// HTTPSetup is a canned oracle response.
type HTTPSetup struct {
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url"`
	Status  uint16            `yaml:"status"`
	Body    string            `yaml:"body,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// ApplicationSetup installs an application that answers queries.
type ApplicationSetup struct {
	Name       string `yaml:"name"`
	ID         string `yaml:"id,omitempty"`
	Parameters any    `yaml:"parameters,omitempty"`

	// Reads lists facts the application reads through its own runtime
	// before answering. They show up in the trace one level deeper.
	Reads []string `yaml:"reads,omitempty"`

	// Forward relays every query to the named application and returns
	// its response unchanged.
	Forward string `yaml:"forward,omitempty"`

	// Responses are matched against the canonical form of the query.
	Responses []CannedResponse `yaml:"responses,omitempty"`
}

// CannedResponse answers one query.
type CannedResponse struct {
	Query any `yaml:"query"`

	// Response is encoded as JSON. Raw, when set, is returned verbatim
	// instead, for replies that are not valid JSON.
	Response any    `yaml:"response,omitempty"`
	Raw      string `yaml:"raw,omitempty"`

	// Abort makes the application abort with this message.
	Abort string `yaml:"abort,omitempty"`
}

// Step is one action of the scenario. Exactly one of Call, Mutate and
// NewExecution is set.
type Step struct {
	// Call names a facade operation (see Calls).
	Call string         `yaml:"call,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`

	// Expect is compared with the call result in canonical JSON form.
	Expect any `yaml:"expect,omitempty"`

	// Abort is the abort code the call must raise.
	Abort string `yaml:"abort,omitempty"`

	// Mutate changes host state between calls.
	Mutate *Mutation `yaml:"mutate,omitempty"`

	// NewExecution ends the current execution and starts a new one with
	// empty caches.
	NewExecution bool `yaml:"new_execution,omitempty"`
}

// Mutation changes the sandbox store mid-scenario.
type Mutation struct {
	Height       *uint64        `yaml:"height,omitempty"`
	Timestamp    *uint64        `yaml:"timestamp,omitempty"`
	ChainBalance string         `yaml:"chain_balance,omitempty"`
	Credit       []BalanceSetup `yaml:"credit,omitempty"`
	Blobs        []string       `yaml:"blobs,omitempty"`
}

// Assertion validates the host-call trace or the operation queue.
type Assertion struct {
	// Type specifies the assertion type:
	// - "host_calls": primitive was invoked exactly Count times
	// - "trace_order": primitives appear in order
	// - "operations": scheduled operations equal Operations
	Type string `yaml:"type"`

	// Primitive is the host primitive (used by host_calls).
	Primitive string `yaml:"primitive,omitempty"`

	// Count is the expected number of invocations (used by host_calls).
	Count int `yaml:"count"`

	// Execution restricts host_calls to one execution, 1-based.
	// Zero counts across all executions.
	Execution int `yaml:"execution,omitempty"`

	// Primitives is the expected order (used by trace_order).
	Primitives []string `yaml:"primitives,omitempty"`

	// Operations are the expected operation values (used by operations).
	Operations []any `yaml:"operations,omitempty"`
}

// Assertion type constants.
const (
	AssertHostCalls  = "host_calls"
	AssertTraceOrder = "trace_order"
	AssertOperations = "operations"
)

// Dir returns the directory the scenario was loaded from.
func (s *Scenario) Dir() string {
	return s.dir
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}
	if s.Host.ChainID == "" {
		return fmt.Errorf("host.chain_id is required")
	}
	if s.Host.Application == "" {
		return fmt.Errorf("host.application is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Applications))
	for i, app := range s.Applications {
		if app.Name == "" {
			return fmt.Errorf("applications[%d]: name is required", i)
		}
		if names[app.Name] {
			return fmt.Errorf("applications[%d]: duplicate name %q", i, app.Name)
		}
		names[app.Name] = true
		for _, fact := range app.Reads {
			if !isFactCall(fact) {
				return fmt.Errorf("applications[%d]: %q is not a readable fact", i, fact)
			}
		}
	}
	for i, app := range s.Applications {
		if app.Forward != "" && !names[app.Forward] && app.Forward != s.Host.Application {
			return fmt.Errorf("applications[%d]: forward target %q is not an application", i, app.Forward)
		}
		if app.Forward != "" && len(app.Responses) > 0 {
			return fmt.Errorf("applications[%d]: forward and responses are exclusive", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, names); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step, apps map[string]bool) error {
	kinds := 0
	if step.Call != "" {
		kinds++
	}
	if step.Mutate != nil {
		kinds++
	}
	if step.NewExecution {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of call, mutate, new_execution is required", index)
	}

	if step.Call == "" {
		if step.Expect != nil || step.Abort != "" || step.Args != nil {
			return fmt.Errorf("steps[%d]: args, expect and abort only apply to calls", index)
		}
		return nil
	}

	if !slices.Contains(Calls, step.Call) {
		return fmt.Errorf("steps[%d]: unknown call %q", index, step.Call)
	}
	if step.Expect != nil && step.Abort != "" {
		return fmt.Errorf("steps[%d]: expect and abort are exclusive", index)
	}
	if step.Call == CallQueryApplication {
		target, _ := step.Args["application"].(string)
		if !apps[target] {
			return fmt.Errorf("steps[%d]: query target %q is not an application", index, target)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHostCalls:
		if !host.Primitive(a.Primitive).IsValid() {
			return fmt.Errorf("assertions[%d]: unknown primitive %q", index, a.Primitive)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for host_calls", index)
		}
		if a.Execution < 0 {
			return fmt.Errorf("assertions[%d]: execution must be positive", index)
		}
	case AssertTraceOrder:
		if len(a.Primitives) == 0 {
			return fmt.Errorf("assertions[%d]: primitives list is required for trace_order", index)
		}
		for _, p := range a.Primitives {
			if !host.Primitive(p).IsValid() {
				return fmt.Errorf("assertions[%d]: unknown primitive %q", index, p)
			}
		}
	case AssertOperations:
		// An empty list asserts that nothing was scheduled.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
