package runtime

import (
	"log/slog"
	"slices"

	"github.com/roach88/svcrt/internal/abi"
	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/cell"
	"github.com/roach88/svcrt/internal/codec"
	"github.com/roach88/svcrt/internal/host"
	"github.com/roach88/svcrt/internal/views"
)

// Fact names, used for cell names and log events.
const (
	FactParameters      = "parameters"
	FactApplicationID   = "application_id"
	FactChainID         = "chain_id"
	FactNextBlockHeight = "next_block_height"
	FactSystemTime      = "system_time"
	FactChainBalance    = "chain_balance"
	FactOwnerBalances   = "owner_balances"
	FactBalanceOwners   = "balance_owners"
)

// OwnerBalance is one entry of the ledger snapshot.
type OwnerBalance struct {
	Owner   base.AccountOwner `json:"owner"`
	Balance base.Amount       `json:"balance"`
}

// Runtime is the per-execution facade over the host.
//
// P is the application's parameters type, decoded from JSON. A is the
// application's own interface, used to tag ApplicationID.
type Runtime[P, A any] struct {
	host        host.Host
	logger      *slog.Logger
	executionID string

	parameters      *cell.Cell[P]
	applicationID   *cell.Cell[abi.ApplicationID[A]]
	chainID         *cell.Cell[base.ChainID]
	nextBlockHeight *cell.Cell[base.BlockHeight]
	systemTime      *cell.Cell[base.Timestamp]
	chainBalance    *cell.Cell[base.Amount]
	ownerBalances   *cell.Cell[[]OwnerBalance]
	balanceOwners   *cell.Cell[[]base.AccountOwner]
}

// New creates a runtime with every cache empty.
func New[P, A any](h host.Host, opts ...Option) *Runtime[P, A] {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Runtime[P, A]{
		host:        h,
		logger:      cfg.logger,
		executionID: cfg.executionID,

		parameters:      cell.NewWithClone(FactParameters, cloneJSON[P]),
		applicationID:   cell.New[abi.ApplicationID[A]](FactApplicationID),
		chainID:         cell.New[base.ChainID](FactChainID),
		nextBlockHeight: cell.New[base.BlockHeight](FactNextBlockHeight),
		systemTime:      cell.New[base.Timestamp](FactSystemTime),
		chainBalance:    cell.New[base.Amount](FactChainBalance),
		ownerBalances:   cell.NewWithClone(FactOwnerBalances, slices.Clone[[]OwnerBalance]),
		balanceOwners:   cell.NewWithClone(FactBalanceOwners, slices.Clone[[]base.AccountOwner]),
	}
}

// Host returns the host the runtime was created with.
func (r *Runtime[P, A]) Host() host.Host {
	return r.host
}

// ExecutionID returns the execution id set with WithExecutionID.
func (r *Runtime[P, A]) ExecutionID() string {
	return r.executionID
}

// ApplicationParameters returns the application's parameters.
// Parameters that do not decode as P abort with DECODING_FAILED.
func (r *Runtime[P, A]) ApplicationParameters() P {
	return cached(r, r.parameters, func() P {
		raw := r.host.FetchParameters()
		var p P
		if err := codec.DecodeJSON(raw, &p); err != nil {
			abort.Throw(abort.New(abort.CodeDecodingFailed, "application parameters did not decode", err).
				With("fact", FactParameters))
		}
		return p
	})
}

// ApplicationID returns the id of the running application.
func (r *Runtime[P, A]) ApplicationID() abi.ApplicationID[A] {
	return cached(r, r.applicationID, func() abi.ApplicationID[A] {
		return abi.WithAbi[A](r.host.FetchApplicationID())
	})
}

// ChainID returns the id of the chain the application runs on.
func (r *Runtime[P, A]) ChainID() base.ChainID {
	return cached(r, r.chainID, r.host.FetchChainID)
}

// NextBlockHeight returns the height of the next block.
func (r *Runtime[P, A]) NextBlockHeight() base.BlockHeight {
	return cached(r, r.nextBlockHeight, r.host.FetchBlockHeight)
}

// SystemTime returns the current system time.
func (r *Runtime[P, A]) SystemTime() base.Timestamp {
	return cached(r, r.systemTime, r.host.FetchTimestamp)
}

// ChainBalance returns the balance held by the chain itself.
func (r *Runtime[P, A]) ChainBalance() base.Amount {
	return cached(r, r.chainBalance, r.host.FetchChainBalance)
}

// OwnerBalance returns the balance of one owner. Unlike the other balance
// accessors it is not cached: every call reaches the host.
func (r *Runtime[P, A]) OwnerBalance(owner base.AccountOwner) base.Amount {
	return r.host.FetchOwnerBalance(owner)
}

// OwnerBalances returns every (owner, balance) pair in host order, as of the
// first call in this execution.
func (r *Runtime[P, A]) OwnerBalances() []OwnerBalance {
	return cached(r, r.ownerBalances, func() []OwnerBalance {
		raw := r.host.FetchAllOwnerBalances()
		out := make([]OwnerBalance, len(raw))
		for i, entry := range raw {
			out[i] = OwnerBalance{
				Owner:   decodeOwner(entry.Owner, FactOwnerBalances),
				Balance: entry.Balance,
			}
		}
		return out
	})
}

// BalanceOwners returns every owner holding a balance, in host order, as of
// the first call in this execution.
func (r *Runtime[P, A]) BalanceOwners() []base.AccountOwner {
	return cached(r, r.balanceOwners, func() []base.AccountOwner {
		raw := r.host.FetchBalanceOwners()
		out := make([]base.AccountOwner, len(raw))
		for i, owner := range raw {
			out[i] = decodeOwner(owner, FactBalanceOwners)
		}
		return out
	})
}

// HTTPRequest performs an oracle request. Every call reaches the host.
func (r *Runtime[P, A]) HTTPRequest(req base.HTTPRequest) base.HTTPResponse {
	raw := r.host.PerformHTTPRequest(req)
	return base.HTTPResponse{
		Status:  raw.Status,
		Headers: raw.Headers,
		Body:    raw.Body,
	}
}

// ReadDataBlob returns the content of a data blob.
// A missing blob aborts with BLOB_MISSING.
func (r *Runtime[P, A]) ReadDataBlob(hash base.DataBlobHash) []byte {
	return r.host.ReadDataBlob(hash)
}

// AssertDataBlobExists aborts with BLOB_MISSING unless the blob exists.
func (r *Runtime[P, A]) AssertDataBlobExists(hash base.DataBlobHash) {
	r.host.AssertDataBlobExists(hash)
}

// ScheduleRawOperation appends an already serialized operation to the
// host's operation queue.
func (r *Runtime[P, A]) ScheduleRawOperation(payload []byte) {
	r.host.ScheduleOperation(payload)
}

// ScheduleOperation serializes op in canonical binary form and appends it to
// the operation queue. Values that cannot be encoded abort with
// ENCODING_FAILED.
func (r *Runtime[P, A]) ScheduleOperation(op any) {
	payload, err := codec.EncodeBinary(op)
	if err != nil {
		abort.Raise(abort.CodeEncodingFailed, "operation did not encode", err)
	}
	r.ScheduleRawOperation(payload)
}

// KeyValueStore returns a handle on the application's storage.
func (r *Runtime[P, A]) KeyValueStore() views.KeyValueStore {
	return views.NewKeyValueStore(r.host)
}

// RootViewStorageContext returns the storage context for the root view.
// It is bound to the empty base key and does not contact the host.
func (r *Runtime[P, A]) RootViewStorageContext() views.ViewStorageContext {
	return views.NewViewStorageContext(r.KeyValueStore(), nil)
}

func cached[T, P, A any](r *Runtime[P, A], c *cell.Cell[T], fetch func() T) T {
	return c.GetOrInit(func() T {
		r.logger.Debug("runtime cache miss",
			"fact", c.Name(),
			"execution_id", r.executionID,
		)
		return fetch()
	})
}

func decodeOwner(raw host.RawOwner, fact string) base.AccountOwner {
	owner, err := base.OwnerFromBytes(raw)
	if err != nil {
		abort.Throw(abort.New(abort.CodeDecodingFailed, "host returned a malformed account owner", err).
			With("fact", fact))
	}
	return owner
}

// cloneJSON duplicates a value decoded from JSON by round-tripping it, so
// that parameters carrying slices or maps are not shared between reads.
func cloneJSON[T any](v T) T {
	data, err := codec.EncodeJSON(v)
	if err != nil {
		abort.Raise(abort.CodeEncodingFailed, "parameters could not be duplicated", err)
	}
	var out T
	if err := codec.DecodeJSON(data, &out); err != nil {
		abort.Raise(abort.CodeDecodingFailed, "parameters could not be duplicated", err)
	}
	return out
}
