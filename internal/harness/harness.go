package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/svcrt/internal/abi"
	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/canonical"
	"github.com/roach88/svcrt/internal/codec"
	"github.com/roach88/svcrt/internal/host"
	"github.com/roach88/svcrt/internal/runtime"
	"github.com/roach88/svcrt/internal/sandbox"
	"github.com/roach88/svcrt/internal/store"
	"github.com/roach88/svcrt/internal/testutil"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	ctx      context.Context
	logger   *slog.Logger
	database string
}

// WithLogger routes sandbox and runtime logs to logger. Runs are silent by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContext bounds store access during the run.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithDatabase runs the scenario against a SQLite file instead of an
// in-memory store and logs every host call there, so the run can be
// inspected afterwards. The file must not hold an earlier run.
func WithDatabase(path string) Option {
	return func(c *config) {
		c.database = path
	}
}

// runner holds the state of one scenario run.
type runner struct {
	ctx     context.Context
	logger  *slog.Logger
	store   *store.Store
	persist bool
	host    *sandbox.Host
	rt      *scenarioRuntime
	apps    map[string]base.ApplicationID
	result  *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// deterministic clock and execution ids derived from the scenario's
// execution_id, so that repeated runs produce identical traces.
//
// Execution flow:
// 1. Seed chain facts, balances, blobs, storage and oracle responses
// 2. Install the applications, with descriptors when the scenario names an ABI
// 3. Run the steps against one runtime per execution
// 4. Evaluate assertions against the collected executions
//
// An abort ends the execution it happened in; the next step runs in a new
// one, as a host would after a failed query.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		ctx:    context.Background(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := openStore(cfg.database)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	r := &runner{
		ctx:     cfg.ctx,
		logger:  cfg.logger,
		store:   st,
		persist: cfg.database != "",
		apps:    make(map[string]base.ApplicationID),
		result:  NewResult(),
	}
	if err := r.setup(scenario); err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := r.step(i, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	if err := r.finishExecution(); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(r.result, scenario.Assertions) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		st, err := store.OpenMemory()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		return st, nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("database %s already exists", path)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func (r *runner) setup(s *Scenario) error {
	descriptors, err := loadDescriptors(s)
	if err != nil {
		return err
	}

	chainID, _ := resolveID(s.Host.ChainID)
	rootID, rootName := resolveID(s.Host.Application)
	chainBalance, err := parseAmount(s.Host.ChainBalance)
	if err != nil {
		return fmt.Errorf("host.chain_balance: %w", err)
	}
	err = r.store.WriteChainFacts(r.ctx, store.ChainFacts{
		ChainID:       base.ChainID(chainID),
		ApplicationID: base.ApplicationID(rootID),
		BlockHeight:   base.BlockHeight(s.Host.Height),
		Timestamp:     base.TimestampFromMicros(s.Host.Timestamp),
		ChainBalance:  chainBalance,
	})
	if err != nil {
		return err
	}
	if err := r.credit(s.Host.Balances); err != nil {
		return err
	}
	if err := r.writeBlobs(s.Host.Blobs); err != nil {
		return err
	}

	hostOpts := []sandbox.Option{
		sandbox.WithLogger(r.logger),
		sandbox.WithIDGenerator(testutil.NewSequentialIDGenerator(s.ExecutionID)),
		sandbox.WithClock(testutil.NewDeterministicClock()),
		sandbox.WithMaxDepth(s.MaxDepth),
	}
	if r.persist {
		hostOpts = append(hostOpts, sandbox.WithPersistedTrace())
	}
	r.host, err = sandbox.New(r.ctx, r.store, hostOpts...)
	if err != nil {
		return err
	}

	params, err := jsonParameters(s.Host.Parameters)
	if err != nil {
		return fmt.Errorf("host.parameters: %w", err)
	}
	root := sandbox.Application{
		ID:         base.ApplicationID(rootID),
		Name:       rootName,
		Parameters: params,
	}
	if d, ok := descriptors[rootName]; ok && rootName != "" {
		root.Descriptor = d
	}
	if err := r.host.RegisterApplication(root); err != nil {
		return err
	}
	if rootName != "" {
		r.apps[rootName] = root.ID
	}

	for key, value := range s.Host.Storage {
		if err := r.host.SeedKV(root.ID, []byte(key), []byte(value)); err != nil {
			return err
		}
	}
	for _, h := range s.Host.HTTP {
		r.host.SetOracleResponse(oracleRequest(h), oracleResponse(h))
	}

	for _, app := range s.Applications {
		id := base.HashBytes([]byte(app.Name))
		if app.ID != "" {
			id, _ = resolveID(app.ID)
		}
		r.apps[app.Name] = base.ApplicationID(id)
	}
	for _, app := range s.Applications {
		installed, err := r.application(app)
		if err != nil {
			return fmt.Errorf("application %s: %w", app.Name, err)
		}
		installed.Descriptor = descriptors[app.Name]
		if err := r.host.RegisterApplication(installed); err != nil {
			return err
		}
	}

	r.rt = r.newRuntime()
	return nil
}

// application builds the sandbox registration for one scenario application.
func (r *runner) application(app ApplicationSetup) (sandbox.Application, error) {
	params, err := jsonParameters(app.Parameters)
	if err != nil {
		return sandbox.Application{}, fmt.Errorf("parameters: %w", err)
	}

	type canned struct {
		query    []byte
		response CannedResponse
	}
	responses := make([]canned, len(app.Responses))
	for i, c := range app.Responses {
		key, err := canonicalValue(c.Query)
		if err != nil {
			return sandbox.Application{}, fmt.Errorf("responses[%d].query: %w", i, err)
		}
		if key == nil {
			return sandbox.Application{}, fmt.Errorf("responses[%d]: query is required", i)
		}
		responses[i] = canned{query: key, response: c}
	}

	handler := func(inner host.Host, query []byte) []byte {
		if len(app.Reads) > 0 {
			rt := runtime.New[any, scenarioAbi](inner, runtime.WithLogger(r.logger))
			for _, fact := range app.Reads {
				if _, err := invoke(rt, r.apps, fact, nil); err != nil {
					abort.Raise(abort.CodeHostAbort, "application read failed", err)
				}
			}
		}

		if app.Forward != "" {
			return inner.DispatchApplicationQuery(r.apps[app.Forward], query)
		}

		key, err := canonical.Normalize(query)
		if err != nil {
			abort.Raise(abort.CodeHostAbort, "query is not canonical JSON", err)
		}
		for _, c := range responses {
			if !bytes.Equal(c.query, key) {
				continue
			}
			switch {
			case c.response.Abort != "":
				abort.Raise(abort.CodeHostAbort, c.response.Abort, nil)
			case c.response.Raw != "":
				return []byte(c.response.Raw)
			}
			data, err := codec.EncodeJSON(c.response.Response)
			if err != nil {
				abort.Raise(abort.CodeEncodingFailed, "canned response did not encode", err)
			}
			return data
		}
		abort.Throw(abort.New(abort.CodeHostAbort, "no canned response for query", nil).
			With("query", string(key)))
		return nil
	}

	return sandbox.Application{
		ID:         r.apps[app.Name],
		Name:       app.Name,
		Parameters: params,
		Handler:    handler,
	}, nil
}

func (r *runner) newRuntime() *scenarioRuntime {
	return runtime.New[any, scenarioAbi](r.host,
		runtime.WithLogger(r.logger),
		runtime.WithExecutionID(r.host.ExecutionID()),
	)
}

func (r *runner) step(index int, step Step) error {
	switch {
	case step.NewExecution:
		r.result.Steps = append(r.result.Steps, StepResult{Index: index, Kind: StepNewExecution})
		return r.newExecution()
	case step.Mutate != nil:
		r.result.Steps = append(r.result.Steps, StepResult{Index: index, Kind: StepMutate})
		return r.mutate(step.Mutate)
	}

	res := StepResult{Index: index, Kind: StepCall, Call: step.Call}
	var (
		value   any
		callErr error
	)
	err := abort.Run(func() {
		value, callErr = invoke(r.rt, r.apps, step.Call, step.Args)
	})

	if err != nil {
		a, _ := abort.As(err)
		res.Abort = string(a.Code)
		r.result.Steps = append(r.result.Steps, res)
		switch {
		case step.Abort == "":
			r.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected abort: %v", index, step.Call, err))
		case step.Abort != res.Abort:
			r.result.AddError(fmt.Sprintf("steps[%d] %s: expected abort %s, got %s", index, step.Call, step.Abort, res.Abort))
		}
		r.logger.Info("scenario step aborted",
			"step", index,
			"call", step.Call,
			"code", res.Abort,
		)
		return r.newExecution()
	}

	if callErr != nil {
		r.result.Steps = append(r.result.Steps, res)
		r.result.AddError(fmt.Sprintf("steps[%d] %s: %v", index, step.Call, callErr))
		return nil
	}

	res.Value, err = canonicalValue(value)
	if err != nil {
		return fmt.Errorf("%s result: %w", step.Call, err)
	}
	r.result.Steps = append(r.result.Steps, res)

	if step.Abort != "" {
		r.result.AddError(fmt.Sprintf("steps[%d] %s: expected abort %s, call returned", index, step.Call, step.Abort))
	}
	if step.Expect != nil {
		want, err := canonicalValue(step.Expect)
		if err != nil {
			return fmt.Errorf("%s expect: %w", step.Call, err)
		}
		if !bytes.Equal(want, res.Value) {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", index, step.Call, want, res.Value))
		}
	}

	r.logger.Info("scenario step completed",
		"step", index,
		"call", step.Call,
		"execution_id", r.host.ExecutionID(),
	)
	return nil
}

// finishExecution records the host side of the current execution.
func (r *runner) finishExecution() error {
	ops, err := r.host.Operations()
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for p, n := range r.host.CallCounts() {
		counts[string(p)] = n
	}
	r.result.Executions = append(r.result.Executions, Execution{
		ID:         r.host.ExecutionID(),
		Trace:      r.host.Trace(),
		Calls:      counts,
		Operations: ops,
	})
	return nil
}

func (r *runner) newExecution() error {
	if err := r.finishExecution(); err != nil {
		return err
	}
	r.host.NewExecution()
	r.rt = r.newRuntime()
	return nil
}

func (r *runner) mutate(m *Mutation) error {
	if m.Height != nil || m.Timestamp != nil || m.ChainBalance != "" {
		facts, err := r.store.ReadChainFacts(r.ctx)
		if err != nil {
			return err
		}
		if m.Height != nil {
			facts.BlockHeight = base.BlockHeight(*m.Height)
		}
		if m.Timestamp != nil {
			facts.Timestamp = base.TimestampFromMicros(*m.Timestamp)
		}
		if m.ChainBalance != "" {
			if facts.ChainBalance, err = parseAmount(m.ChainBalance); err != nil {
				return fmt.Errorf("chain_balance: %w", err)
			}
		}
		if err := r.store.WriteChainFacts(r.ctx, facts); err != nil {
			return err
		}
	}
	if err := r.credit(m.Credit); err != nil {
		return err
	}
	return r.writeBlobs(m.Blobs)
}

func (r *runner) credit(balances []BalanceSetup) error {
	for _, b := range balances {
		owner, err := base.ParseAccountOwner(b.Owner)
		if err != nil {
			return err
		}
		amount, err := parseAmount(b.Amount)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", b.Owner, err)
		}
		if err := r.store.Credit(r.ctx, owner, amount); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) writeBlobs(blobs []string) error {
	for _, content := range blobs {
		if _, err := r.store.WriteBlob(r.ctx, []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// resolveID accepts a hex hash or a label. Labels are hashed and returned
// as the name to show in traces.
func resolveID(s string) (base.CryptoHash, string) {
	if h, err := base.ParseCryptoHash(s); err == nil {
		return h, ""
	}
	return base.HashBytes([]byte(s)), s
}

func parseAmount(s string) (base.Amount, error) {
	if s == "" {
		return base.ZeroAmount, nil
	}
	return base.ParseAmount(s)
}

func jsonParameters(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return codec.EncodeJSON(v)
}

func oracleRequest(h HTTPSetup) base.HTTPRequest {
	req := base.NewHTTPGet(h.URL)
	if h.Method != "" {
		req.Method = base.HTTPMethod(h.Method)
	}
	return req
}

func oracleResponse(h HTTPSetup) base.HTTPResponse {
	resp := base.HTTPResponse{Status: h.Status, Body: []byte(h.Body)}
	for _, name := range sortedKeys(h.Headers) {
		resp.Headers = append(resp.Headers, base.HTTPHeader{Name: name, Value: []byte(h.Headers[name])})
	}
	return resp
}

// canonicalValue returns the canonical JSON of v, or nil when v is null.
func canonicalValue(v any) (json.RawMessage, error) {
	raw, err := codec.EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return canonical.Normalize(raw)
}

// loadDescriptors compiles the scenario's ABI file or directory.
func loadDescriptors(s *Scenario) (map[string]*abi.Descriptor, error) {
	if s.ABI == "" {
		return nil, nil
	}
	path := s.ABI
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("abi: %w", err)
	}
	var descs []*abi.Descriptor
	if info.IsDir() {
		descs, err = abi.LoadDir(path)
	} else {
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			descs, err = abi.CompileString(string(data))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("abi: %w", err)
	}

	out := make(map[string]*abi.Descriptor, len(descs))
	for _, d := range descs {
		out[d.Name] = d
	}
	return out, nil
}
