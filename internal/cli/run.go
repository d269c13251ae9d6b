package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/svcrt/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunResult summarizes a persisted scenario run.
type RunResult struct {
	Scenario   string   `json:"scenario"`
	Database   string   `json:"database"`
	Pass       bool     `json:"pass"`
	Steps      int      `json:"steps"`
	Executions []string `json:"executions"`
	Errors     []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and keep its host-call log",
		Long: `Run a single scenario against a SQLite-backed sandbox host.

Every host call is logged to the database together with the scheduled
operations, so the run can be inspected with "svcrt trace". The database
file must not exist yet.

Example:
  svcrt run --db ./run.db ./scenarios/fact_cache.yaml
  svcrt trace --db ./run.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioToDatabase(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runScenarioToDatabase(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter.VerboseLog("Running %s into %s", scenario.Name, opts.Database)
	result, err := harness.Run(scenario,
		harness.WithContext(ctx),
		harness.WithLogger(opts.Logger(formatter.GetErrWriter())),
		harness.WithDatabase(opts.Database),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run failed", err)
	}

	summary := RunResult{
		Scenario:   scenario.Name,
		Database:   opts.Database,
		Pass:       result.Pass,
		Steps:      len(result.Steps),
		Executions: make([]string, len(result.Executions)),
		Errors:     result.Errors,
	}
	for i, e := range result.Executions {
		summary.Executions[i] = e.ID
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Ran %s: %d steps in %d executions\n", summary.Scenario, summary.Steps, len(summary.Executions))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		fmt.Fprintf(w, "Host calls logged to %s\n", opts.Database)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}
