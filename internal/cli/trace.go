package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/svcrt/internal/host"
	"github.com/roach88/svcrt/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Execution string // optional - restrict to one execution
	Primitive string // optional - filter to one primitive
}

// TraceCall is one logged host call.
type TraceCall struct {
	Seq         int64           `json:"seq"`
	Depth       int             `json:"depth"`
	Application string          `json:"application"`
	Primitive   string          `json:"primitive"`
	Detail      json.RawMessage `json:"detail"`
}

// ExecutionTrace is the host-call log of one execution.
type ExecutionTrace struct {
	ID         string      `json:"id"`
	Calls      []TraceCall `json:"calls"`
	Operations []string    `json:"operations"` // hex payloads
}

// TraceStats holds summary statistics for the log.
type TraceStats struct {
	Executions  int            `json:"executions"`
	TotalCalls  int            `json:"total_calls"`
	Operations  int            `json:"operations"`
	MaxDepth    int            `json:"max_depth"`
	ByPrimitive map[string]int `json:"by_primitive"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Executions []ExecutionTrace `json:"executions"`
	Stats      TraceStats       `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the host-call log of a run",
		Long: `Show the host calls logged by "svcrt run".

Calls are listed per execution in sequence order, indented by
cross-application query depth, followed by the operations the execution
scheduled.

The output includes:
- Executions: Host calls and scheduled operations per execution
- Stats: Call counts per primitive and the deepest query nesting

Examples:
  svcrt trace --db ./run.db
  svcrt trace --db ./run.db --execution exec-cache-2
  svcrt trace --db ./run.db --primitive dispatch_application_query --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Execution, "execution", "", "show a single execution")
	cmd.Flags().StringVar(&opts.Primitive, "primitive", "", "filter to one host primitive")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Primitive != "" && !host.Primitive(opts.Primitive).IsValid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown primitive %q", opts.Primitive))
	}
	// store.Open would create a missing file.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ids, err := st.ListExecutions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list executions", err)
	}
	if opts.Execution != "" {
		if !slices.Contains(ids, opts.Execution) {
			return NewExitError(ExitCommandError, fmt.Sprintf("no host calls logged for execution %s", opts.Execution))
		}
		ids = []string{opts.Execution}
	}

	result := TraceResult{
		Executions: make([]ExecutionTrace, 0, len(ids)),
		Stats:      TraceStats{ByPrimitive: map[string]int{}},
	}
	for _, id := range ids {
		et, err := loadExecution(ctx, st, id, opts.Primitive)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read execution "+id, err)
		}
		result.Executions = append(result.Executions, et)
		result.Stats.add(et)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd, result)
	return nil
}

func loadExecution(ctx context.Context, st *store.Store, id, primitive string) (ExecutionTrace, error) {
	calls, err := st.ReadHostCalls(ctx, id)
	if err != nil {
		return ExecutionTrace{}, err
	}
	ops, err := st.ReadOperations(ctx, id)
	if err != nil {
		return ExecutionTrace{}, err
	}

	et := ExecutionTrace{
		ID:         id,
		Calls:      []TraceCall{},
		Operations: make([]string, len(ops)),
	}
	for _, c := range calls {
		if primitive != "" && c.Primitive != primitive {
			continue
		}
		et.Calls = append(et.Calls, TraceCall{
			Seq:         c.Seq,
			Depth:       c.Depth,
			Application: c.Application,
			Primitive:   c.Primitive,
			Detail:      json.RawMessage(c.Detail),
		})
	}
	for i, op := range ops {
		et.Operations[i] = hex.EncodeToString(op.Payload)
	}
	return et, nil
}

func (s *TraceStats) add(et ExecutionTrace) {
	s.Executions++
	s.Operations += len(et.Operations)
	for _, c := range et.Calls {
		s.TotalCalls++
		s.ByPrimitive[c.Primitive]++
		s.MaxDepth = max(s.MaxDepth, c.Depth)
	}
}

// outputTraceText prints the log as an indented timeline.
func outputTraceText(cmd *cobra.Command, result TraceResult) {
	w := cmd.OutOrStdout()

	if len(result.Executions) == 0 {
		fmt.Fprintln(w, "No host calls logged.")
		return
	}

	for _, et := range result.Executions {
		fmt.Fprintf(w, "Execution %s\n", et.ID)
		for _, c := range et.Calls {
			fmt.Fprintf(w, "  [%d] %s%s %s %s\n",
				c.Seq, strings.Repeat("  ", c.Depth), c.Application, c.Primitive, c.Detail)
		}
		for i, op := range et.Operations {
			fmt.Fprintf(w, "  operation %d: %s\n", i, op)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Stats: %d executions, %d host calls, %d operations, max depth %d\n",
		result.Stats.Executions, result.Stats.TotalCalls, result.Stats.Operations, result.Stats.MaxDepth)
	primitives := make([]string, 0, len(result.Stats.ByPrimitive))
	for p := range result.Stats.ByPrimitive {
		primitives = append(primitives, p)
	}
	slices.Sort(primitives)
	for _, p := range primitives {
		fmt.Fprintf(w, "  %-28s %d\n", p, result.Stats.ByPrimitive[p])
	}
}
