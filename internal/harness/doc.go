// Package harness runs conformance scenarios for the service runtime.
//
// A scenario seeds a sandbox host with chain state, installs applications
// that answer cross-application queries from canned responses, and drives a
// runtime through a list of facade calls. The harness records what each
// call returned and every host primitive the runtime reached, so that
// caching behavior is checked by counting host calls rather than by
// inspecting the runtime.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	execution_id: exec-counter
//	host:
//	  chain_id: main-chain
//	  application: client
//	  height: 12
//	  timestamp: 1700000000000000
//	  balances:
//	    - { owner: "0x01", amount: "5" }
//	applications:
//	  - name: counter
//	    reads: [application_id]
//	    responses:
//	      - query: { kind: value }
//	        response: { value: 7 }
//	steps:
//	  - call: chain_id
//	  - call: query_application
//	    args: { application: counter, query: { kind: value } }
//	    expect: { value: 7 }
//	  - mutate: { height: 13 }
//	  - new_execution: true
//	assertions:
//	  - type: host_calls
//	    primitive: fetch_chain_id
//	    count: 1
//
// Ids are 64 hex characters or labels; a label is hashed and also names
// the application in traces.
//
// # Assertion Types
//
//   - host_calls: a primitive was invoked exactly N times
//   - trace_order: primitives appear in the specified order
//   - operations: the scheduled operations, in canonical binary form
//
// # Aborts
//
// A step that aborts ends its execution. The next step runs in a new
// execution with empty caches, as a host would after a failed query, so a
// scenario may expect several aborts in a row.
//
// # Deterministic Testing
//
// The harness uses:
//   - Sequential execution ids (testutil.SequentialIDGenerator)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per run)
//
// WithDatabase swaps the in-memory store for a new SQLite file that also
// keeps every host call, for inspection with "svcrt trace".
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cache.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
