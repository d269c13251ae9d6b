// Package sandbox is a deterministic, in-process host for service
// applications. It backs the host primitives with a SQLite store, counts and
// traces every primitive invocation, and dispatches cross-application
// queries to registered handlers under cycle and depth limits.
//
// The sandbox is what the package tests, the scenario harness and the CLI
// run queries against. It is single-threaded, like the execution it hosts.
package sandbox

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"

	"github.com/roach88/svcrt/internal/abi"
	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/host"
	"github.com/roach88/svcrt/internal/store"
)

// Handler answers a query sent to a registered application. It receives a
// host bound to that application, so it may run its own runtime over it or
// call back into the caller's, and returns the serialized response. Handlers
// signal failure by aborting.
type Handler func(h host.Host, query []byte) []byte

// Application describes an application installed in the sandbox.
type Application struct {
	ID   base.ApplicationID
	Name string

	// Parameters is the JSON document returned by FetchParameters while the
	// application is answering a query.
	Parameters []byte

	// Handler answers cross-application queries. Nil for an application
	// that is only ever the top-level target.
	Handler Handler

	// Descriptor, when set, validates parameters, incoming queries and
	// outgoing responses.
	Descriptor *abi.Descriptor
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithExecutionID fixes the id of the first execution instead of generating one.
func WithExecutionID(id string) Option {
	return func(h *Host) {
		h.executionID = id
	}
}

// WithIDGenerator sets the execution id generator. Defaults to UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(h *Host) {
		h.ids = gen
	}
}

// WithClock sets the logical clock that stamps trace events.
func WithClock(clock SeqClock) Option {
	return func(h *Host) {
		h.clock = clock
	}
}

// WithMaxDepth bounds cross-application query nesting. Defaults to DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(h *Host) {
		if depth > 0 {
			h.maxDepth = depth
		}
	}
}

// WithHTTPClient lets oracle requests without a canned response reach the
// network through client.
func WithHTTPClient(client *http.Client) Option {
	return func(h *Host) {
		h.httpClient = client
	}
}

// WithPersistedTrace also writes every trace event to the store's host-call log.
func WithPersistedTrace() Option {
	return func(h *Host) {
		h.persistTrace = true
	}
}

// Host implements host.Host over a store.
type Host struct {
	ctx          context.Context
	store        *store.Store
	logger       *slog.Logger
	clock        SeqClock
	ids          IDGenerator
	maxDepth     int
	httpClient   *http.Client
	persistTrace bool

	executionID string
	root        base.ApplicationID
	stack       *callStack
	apps        map[base.ApplicationID]Application
	oracle      map[string]base.HTTPResponse
	counts      map[host.Primitive]int
	trace       []TraceEvent
	metrics     *Metrics
}

var _ host.Host = (*Host)(nil)

// New creates a sandbox host over st. The store must already hold chain
// facts; their application id is the application running top-level queries.
//
// ctx bounds store access and outgoing oracle requests for the lifetime of
// the host.
func New(ctx context.Context, st *store.Store, opts ...Option) (*Host, error) {
	facts, err := st.ReadChainFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	h := &Host{
		ctx:      ctx,
		store:    st,
		logger:   slog.Default(),
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		maxDepth: DefaultMaxDepth,
		root:     facts.ApplicationID,
		apps:     make(map[base.ApplicationID]Application),
		oracle:   make(map[string]base.HTTPResponse),
		counts:   make(map[host.Primitive]int),
		metrics:  newMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.executionID == "" {
		h.executionID = h.ids.Generate()
	}
	h.stack = newCallStack(h.root, h.maxDepth)

	return h, nil
}

// Store returns the backing store.
func (h *Host) Store() *store.Store {
	return h.store
}

// Metrics returns the host's Prometheus collectors.
func (h *Host) Metrics() *Metrics {
	return h.metrics
}

// ExecutionID returns the id of the current execution.
func (h *Host) ExecutionID() string {
	return h.executionID
}

// NewExecution starts a new execution: call counts and the in-memory trace
// are cleared and a fresh execution id is generated. Store state and
// registrations are kept; the logical clock keeps counting.
func (h *Host) NewExecution() string {
	h.executionID = h.ids.Generate()
	h.counts = make(map[host.Primitive]int)
	h.trace = nil
	h.stack.reset(h.root)
	return h.executionID
}

// RegisterApplication installs an application. Parameters are checked
// against the descriptor when one is given.
func (h *Host) RegisterApplication(app Application) error {
	if app.Descriptor != nil && app.Parameters != nil {
		if err := app.Descriptor.ValidateParameters(app.Parameters); err != nil {
			return fmt.Errorf("register application %s: %w", app.Name, err)
		}
	}
	if err := h.store.WriteApplication(h.ctx, store.Application{
		ID:         app.ID,
		Name:       app.Name,
		Parameters: app.Parameters,
	}); err != nil {
		return fmt.Errorf("register application %s: %w", app.Name, err)
	}
	h.apps[app.ID] = app
	return nil
}

// SetOracleResponse makes oracle requests with the method and URL of req
// answer with resp.
func (h *Host) SetOracleResponse(req base.HTTPRequest, resp base.HTTPResponse) {
	h.oracle[oracleKey(req)] = resp
}

// Calls returns how many times p was invoked in the current execution.
func (h *Host) Calls(p host.Primitive) int {
	return h.counts[p]
}

// CallCounts returns a copy of the per-primitive counts of the current execution.
func (h *Host) CallCounts() map[host.Primitive]int {
	return maps.Clone(h.counts)
}

// Trace returns the events of the current execution in seq order.
func (h *Host) Trace() []TraceEvent {
	out := make([]TraceEvent, len(h.trace))
	copy(out, h.trace)
	return out
}

// Operations returns the operations scheduled by the current execution.
func (h *Host) Operations() ([]store.Operation, error) {
	return h.store.ReadOperations(h.ctx, h.executionID)
}

// SeedKV writes a storage entry for app.
func (h *Host) SeedKV(app base.ApplicationID, key, value []byte) error {
	return h.store.WriteKV(h.ctx, namespaced(app, key), value)
}

// record counts and traces one invocation.
func (h *Host) record(p host.Primitive, detail map[string]string) {
	h.counts[p]++
	h.metrics.Calls(p).Inc()

	event := TraceEvent{
		Seq:         h.clock.Next(),
		Depth:       h.stack.depth(),
		Application: h.appLabel(h.stack.current()),
		Primitive:   p,
		Detail:      detail,
	}
	h.trace = append(h.trace, event)

	h.logger.Debug("host call",
		"execution_id", h.executionID,
		"seq", event.Seq,
		"primitive", string(p),
		"application", event.Application,
		"depth", event.Depth,
	)

	if h.persistTrace {
		err := h.store.WriteHostCall(h.ctx, store.HostCall{
			ExecutionID: h.executionID,
			Seq:         event.Seq,
			Depth:       event.Depth,
			Application: event.Application,
			Primitive:   string(p),
			Detail:      event.CanonicalDetail(),
		})
		if err != nil {
			h.fail(p, err)
		}
	}
}

// raise aborts the execution, counting the abort.
func (h *Host) raise(a *abort.Abort) {
	h.metrics.Aborts(a.Code).Inc()
	h.logger.Debug("host abort",
		"execution_id", h.executionID,
		"code", string(a.Code),
		"message", a.Message,
	)
	abort.Throw(a)
}

// fail aborts on an internal host error.
func (h *Host) fail(p host.Primitive, err error) {
	h.raise(abort.New(abort.CodeHostAbort, "host primitive failed", err).With("primitive", string(p)))
}

func (h *Host) appLabel(id base.ApplicationID) string {
	if app, ok := h.apps[id]; ok && app.Name != "" {
		return app.Name
	}
	return shortID(id.String())
}

func (h *Host) facts(p host.Primitive) store.ChainFacts {
	f, err := h.store.ReadChainFacts(h.ctx)
	if err != nil {
		h.fail(p, err)
	}
	return f
}

// The identity-relative primitives of *Host are bound to the root
// application. Handlers get a view bound to the application they answer for;
// see bound.go.

func (h *Host) FetchParameters() []byte {
	return h.fetchParameters(h.root)
}

func (h *Host) FetchApplicationID() base.ApplicationID {
	return h.fetchApplicationID(h.root)
}

func (h *Host) ContainsKey(key []byte) bool {
	return h.containsKey(h.root, key)
}

func (h *Host) ReadValueBytes(key []byte) ([]byte, bool) {
	return h.readValueBytes(h.root, key)
}

func (h *Host) FindKeysByPrefix(prefix []byte) [][]byte {
	return h.findKeysByPrefix(h.root, prefix)
}

func (h *Host) FindKeyValuesByPrefix(prefix []byte) []host.KeyValue {
	return h.findKeyValuesByPrefix(h.root, prefix)
}

func (h *Host) fetchParameters(id base.ApplicationID) []byte {
	h.record(host.PrimFetchParameters, nil)
	app, ok, err := h.store.ReadApplication(h.ctx, id)
	if err != nil {
		h.fail(host.PrimFetchParameters, err)
	}
	if !ok {
		return []byte("null")
	}
	return app.Parameters
}

func (h *Host) fetchApplicationID(id base.ApplicationID) base.ApplicationID {
	h.record(host.PrimFetchApplicationID, nil)
	return id
}

func (h *Host) FetchChainID() base.ChainID {
	h.record(host.PrimFetchChainID, nil)
	return h.facts(host.PrimFetchChainID).ChainID
}

func (h *Host) FetchBlockHeight() base.BlockHeight {
	h.record(host.PrimFetchBlockHeight, nil)
	return h.facts(host.PrimFetchBlockHeight).BlockHeight
}

func (h *Host) FetchTimestamp() base.Timestamp {
	h.record(host.PrimFetchTimestamp, nil)
	return h.facts(host.PrimFetchTimestamp).Timestamp
}

func (h *Host) FetchChainBalance() base.Amount {
	h.record(host.PrimFetchChainBalance, nil)
	return h.facts(host.PrimFetchChainBalance).ChainBalance
}

func (h *Host) FetchOwnerBalance(owner base.AccountOwner) base.Amount {
	h.record(host.PrimFetchOwnerBalance, map[string]string{"owner": owner.String()})
	amount, err := h.store.ReadBalance(h.ctx, owner)
	if err != nil {
		h.fail(host.PrimFetchOwnerBalance, err)
	}
	return amount
}

func (h *Host) FetchAllOwnerBalances() []host.RawOwnerBalance {
	h.record(host.PrimFetchAllOwnerBalances, nil)
	ledger, err := h.store.ReadBalances(h.ctx)
	if err != nil {
		h.fail(host.PrimFetchAllOwnerBalances, err)
	}
	out := make([]host.RawOwnerBalance, len(ledger))
	for i, entry := range ledger {
		out[i] = host.RawOwnerBalance{Owner: entry.Owner.Bytes(), Balance: entry.Balance}
	}
	return out
}

func (h *Host) FetchBalanceOwners() []host.RawOwner {
	h.record(host.PrimFetchBalanceOwners, nil)
	ledger, err := h.store.ReadBalances(h.ctx)
	if err != nil {
		h.fail(host.PrimFetchBalanceOwners, err)
	}
	out := make([]host.RawOwner, len(ledger))
	for i, entry := range ledger {
		out[i] = entry.Owner.Bytes()
	}
	return out
}

func (h *Host) ReadDataBlob(hash base.DataBlobHash) []byte {
	h.record(host.PrimReadDataBlob, map[string]string{"hash": shortID(hash.String())})
	content, ok, err := h.store.ReadBlob(h.ctx, hash)
	if err != nil {
		h.fail(host.PrimReadDataBlob, err)
	}
	if !ok {
		h.raise(blobMissing(hash))
	}
	return content
}

func (h *Host) AssertDataBlobExists(hash base.DataBlobHash) {
	h.record(host.PrimAssertDataBlobExists, map[string]string{"hash": shortID(hash.String())})
	ok, err := h.store.HasBlob(h.ctx, hash)
	if err != nil {
		h.fail(host.PrimAssertDataBlobExists, err)
	}
	if !ok {
		h.raise(blobMissing(hash))
	}
}

func blobMissing(hash base.DataBlobHash) *abort.Abort {
	return abort.New(abort.CodeBlobMissing, "data blob not found", nil).With("hash", hash.String())
}

func (h *Host) ScheduleOperation(payload []byte) {
	h.record(host.PrimScheduleOperation, map[string]string{"payload": hex.EncodeToString(payload)})
	if _, err := h.store.AppendOperation(h.ctx, h.executionID, payload); err != nil {
		h.fail(host.PrimScheduleOperation, err)
	}
}

func (h *Host) DispatchApplicationQuery(id base.ApplicationID, query []byte) []byte {
	h.record(host.PrimDispatchApplicationQuery, map[string]string{
		"target": h.appLabel(id),
		"query":  string(query),
	})

	app, ok := h.apps[id]
	if !ok || app.Handler == nil {
		h.raise(abort.New(abort.CodeHostAbort, "application is not registered for queries", nil).
			With("application", id.String()))
	}
	if app.Descriptor != nil {
		if err := app.Descriptor.ValidateQuery(query); err != nil {
			h.raise(abort.New(abort.CodeHostAbort, "query rejected by application descriptor", err).
				With("application", app.Name))
		}
	}

	if err := h.stack.push(id); err != nil {
		var se *StackError
		code := "stack"
		if errors.As(err, &se) {
			code = string(se.Code)
		}
		h.raise(abort.New(abort.CodeHostAbort, "cross-application query refused", err).
			With("application", h.appLabel(id)).
			With("reason", code))
	}
	defer h.stack.pop()
	h.metrics.observeDispatch(h.stack.depth())

	response := app.Handler(h.bind(id), query)

	if app.Descriptor != nil {
		if err := app.Descriptor.ValidateResponse(response); err != nil {
			h.raise(abort.New(abort.CodeHostAbort, "response rejected by application descriptor", err).
				With("application", app.Name))
		}
	}
	return response
}

func (h *Host) containsKey(app base.ApplicationID, key []byte) bool {
	h.record(host.PrimContainsKey, map[string]string{"key": hex.EncodeToString(key)})
	_, ok, err := h.store.ReadKV(h.ctx, namespaced(app, key))
	if err != nil {
		h.fail(host.PrimContainsKey, err)
	}
	return ok
}

func (h *Host) readValueBytes(app base.ApplicationID, key []byte) ([]byte, bool) {
	h.record(host.PrimReadValueBytes, map[string]string{"key": hex.EncodeToString(key)})
	value, ok, err := h.store.ReadKV(h.ctx, namespaced(app, key))
	if err != nil {
		h.fail(host.PrimReadValueBytes, err)
	}
	return value, ok
}

func (h *Host) findKeysByPrefix(app base.ApplicationID, prefix []byte) [][]byte {
	h.record(host.PrimFindKeysByPrefix, map[string]string{"prefix": hex.EncodeToString(prefix)})
	entries := h.scan(host.PrimFindKeysByPrefix, app, prefix)
	out := make([][]byte, len(entries))
	for i, kv := range entries {
		out[i] = kv.Key
	}
	return out
}

func (h *Host) findKeyValuesByPrefix(app base.ApplicationID, prefix []byte) []host.KeyValue {
	h.record(host.PrimFindKeyValuesByPrefix, map[string]string{"prefix": hex.EncodeToString(prefix)})
	return h.scan(host.PrimFindKeyValuesByPrefix, app, prefix)
}

func (h *Host) scan(p host.Primitive, app base.ApplicationID, prefix []byte) []host.KeyValue {
	full := namespaced(app, prefix)
	entries, err := h.store.ScanKV(h.ctx, full)
	if err != nil {
		h.fail(p, err)
	}
	out := make([]host.KeyValue, len(entries))
	for i, kv := range entries {
		out[i] = host.KeyValue{Key: kv.Key[len(full):], Value: kv.Value}
	}
	return out
}

// namespaced places key inside the storage of app.
func namespaced(app base.ApplicationID, key []byte) []byte {
	out := make([]byte, 0, base.CryptoHashLen+len(key))
	out = append(out, app[:]...)
	return append(out, key...)
}
