package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalHost = `
host:
  chain_id: test-chain
  application: client
  height: 1
  timestamp: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
execution_id: exec-test
` + minimalHost + `
applications:
  - name: counter
    responses:
      - query: { kind: value }
        response: { value: 1 }
steps:
  - call: query_application
    args:
      application: counter
      query: { kind: value }
    expect: { value: 1 }
  - mutate:
      height: 2
  - new_execution: true
assertions:
  - type: host_calls
    primitive: dispatch_application_query
    count: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "exec-test", scenario.ExecutionID)
	assert.Equal(t, dir, scenario.Dir())
	assert.Len(t, scenario.Steps, 3)
	assert.Equal(t, "counter", scenario.Steps[0].Args["application"])
	assert.Equal(t, map[string]any{"kind": "value"}, scenario.Steps[0].Args["query"])
	require.NotNil(t, scenario.Steps[1].Mutate)
	assert.Equal(t, uint64(2), *scenario.Steps[1].Mutate.Height)
	assert.True(t, scenario.Steps[2].NewExecution)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			_, err := LoadScenario(file)
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: y\nstep: []\n" + minimalHost,
			want: "field step not found",
		},
		{
			name: "missing name",
			yaml: "description: y\n" + minimalHost + "steps:\n  - call: chain_id\n",
			want: "name is required",
		},
		{
			name: "missing host application",
			yaml: "name: x\ndescription: y\nhost:\n  chain_id: c\nsteps:\n  - call: chain_id\n",
			want: "host.application is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: y\n" + minimalHost,
			want: "steps list is required",
		},
		{
			name: "unknown call",
			yaml: "name: x\ndescription: y\n" + minimalHost + "steps:\n  - call: balance\n",
			want: `unknown call "balance"`,
		},
		{
			name: "expect and abort",
			yaml: "name: x\ndescription: y\n" + minimalHost + "steps:\n  - call: chain_id\n    expect: a\n    abort: HOST_ABORT\n",
			want: "expect and abort are exclusive",
		},
		{
			name: "two step kinds",
			yaml: "name: x\ndescription: y\n" + minimalHost + "steps:\n  - call: chain_id\n    new_execution: true\n",
			want: "exactly one of call, mutate, new_execution",
		},
		{
			name: "unknown query target",
			yaml: "name: x\ndescription: y\n" + minimalHost + "steps:\n  - call: query_application\n    args: { application: nobody }\n",
			want: `query target "nobody"`,
		},
		{
			name: "read of a non-fact",
			yaml: "name: x\ndescription: y\n" + minimalHost + "applications:\n  - name: a\n    reads: [owner_balance]\nsteps:\n  - call: chain_id\n",
			want: "not a readable fact",
		},
		{
			name: "forward to unknown application",
			yaml: "name: x\ndescription: y\n" + minimalHost + "applications:\n  - name: a\n    forward: b\nsteps:\n  - call: chain_id\n",
			want: `forward target "b"`,
		},
		{
			name: "unknown primitive",
			yaml: "name: x\ndescription: y\n" + minimalHost + "steps:\n  - call: chain_id\nassertions:\n  - type: host_calls\n    primitive: fetch_everything\n    count: 1\n",
			want: `unknown primitive "fetch_everything"`,
		},
		{
			name: "unknown assertion type",
			yaml: "name: x\ndescription: y\n" + minimalHost + "steps:\n  - call: chain_id\nassertions:\n  - type: final_state\n",
			want: `unknown assertion type "final_state"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarios_Filter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cache-a.yaml", "cache-b.yml", "query.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	all, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := FindScenarios(dir, "cache-*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "cache-a.yaml"), filepath.Join(dir, "cache-b.yml")}, filtered)

	_, err = FindScenarios(dir, "[")
	assert.Error(t, err)
}
