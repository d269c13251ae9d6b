package runtime

import (
	"bytes"
	"sort"
	"strings"

	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/host"
)

// fakeHost is an in-memory host that counts primitive invocations.
type fakeHost struct {
	calls map[host.Primitive]int

	parameters  []byte
	appID       base.ApplicationID
	chainID     base.ChainID
	height      base.BlockHeight
	timestamp   base.Timestamp
	chainAmount base.Amount
	ledger      []host.RawOwnerBalance
	blobs       map[base.DataBlobHash][]byte
	storage     map[string][]byte
	operations  [][]byte
	http        func(base.HTTPRequest) host.RawHTTPResponse
	dispatch    func(base.ApplicationID, []byte) []byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		calls:       make(map[host.Primitive]int),
		parameters:  []byte(`{"name":"counter","limits":[1,2]}`),
		appID:       base.ApplicationID(base.HashBytes([]byte("app"))),
		chainID:     base.ChainID(base.HashBytes([]byte("chain"))),
		height:      7,
		timestamp:   base.TimestampFromMicros(1_000_000),
		chainAmount: base.AmountFromTokens(10),
		blobs:       make(map[base.DataBlobHash][]byte),
		storage:     make(map[string][]byte),
	}
}

func (h *fakeHost) record(p host.Primitive) {
	h.calls[p]++
}

func (h *fakeHost) FetchParameters() []byte {
	h.record(host.PrimFetchParameters)
	return h.parameters
}

func (h *fakeHost) FetchApplicationID() base.ApplicationID {
	h.record(host.PrimFetchApplicationID)
	return h.appID
}

func (h *fakeHost) FetchChainID() base.ChainID {
	h.record(host.PrimFetchChainID)
	return h.chainID
}

func (h *fakeHost) FetchBlockHeight() base.BlockHeight {
	h.record(host.PrimFetchBlockHeight)
	return h.height
}

func (h *fakeHost) FetchTimestamp() base.Timestamp {
	h.record(host.PrimFetchTimestamp)
	return h.timestamp
}

func (h *fakeHost) FetchChainBalance() base.Amount {
	h.record(host.PrimFetchChainBalance)
	return h.chainAmount
}

func (h *fakeHost) FetchOwnerBalance(owner base.AccountOwner) base.Amount {
	h.record(host.PrimFetchOwnerBalance)
	for _, entry := range h.ledger {
		if bytes.Equal(entry.Owner, owner.Bytes()) {
			return entry.Balance
		}
	}
	return base.ZeroAmount
}

func (h *fakeHost) FetchAllOwnerBalances() []host.RawOwnerBalance {
	h.record(host.PrimFetchAllOwnerBalances)
	return append([]host.RawOwnerBalance(nil), h.ledger...)
}

func (h *fakeHost) FetchBalanceOwners() []host.RawOwner {
	h.record(host.PrimFetchBalanceOwners)
	out := make([]host.RawOwner, len(h.ledger))
	for i, entry := range h.ledger {
		out[i] = entry.Owner
	}
	return out
}

func (h *fakeHost) PerformHTTPRequest(req base.HTTPRequest) host.RawHTTPResponse {
	h.record(host.PrimPerformHTTPRequest)
	if h.http == nil {
		abort.Raisef(abort.CodeHostAbort, "no oracle for %s", req.URL)
	}
	return h.http(req)
}

func (h *fakeHost) ReadDataBlob(hash base.DataBlobHash) []byte {
	h.record(host.PrimReadDataBlob)
	content, ok := h.blobs[hash]
	if !ok {
		abort.Raisef(abort.CodeBlobMissing, "blob %s not found", hash)
	}
	return content
}

func (h *fakeHost) AssertDataBlobExists(hash base.DataBlobHash) {
	h.record(host.PrimAssertDataBlobExists)
	if _, ok := h.blobs[hash]; !ok {
		abort.Raisef(abort.CodeBlobMissing, "blob %s not found", hash)
	}
}

func (h *fakeHost) ScheduleOperation(payload []byte) {
	h.record(host.PrimScheduleOperation)
	h.operations = append(h.operations, payload)
}

func (h *fakeHost) DispatchApplicationQuery(app base.ApplicationID, query []byte) []byte {
	h.record(host.PrimDispatchApplicationQuery)
	if h.dispatch == nil {
		abort.Raisef(abort.CodeHostAbort, "application %s not registered", app)
	}
	return h.dispatch(app, query)
}

func (h *fakeHost) ContainsKey(key []byte) bool {
	h.record(host.PrimContainsKey)
	_, ok := h.storage[string(key)]
	return ok
}

func (h *fakeHost) ReadValueBytes(key []byte) ([]byte, bool) {
	h.record(host.PrimReadValueBytes)
	v, ok := h.storage[string(key)]
	return v, ok
}

func (h *fakeHost) FindKeysByPrefix(prefix []byte) [][]byte {
	h.record(host.PrimFindKeysByPrefix)
	var out [][]byte
	for _, kv := range h.scan(prefix) {
		out = append(out, kv.Key)
	}
	return out
}

func (h *fakeHost) FindKeyValuesByPrefix(prefix []byte) []host.KeyValue {
	h.record(host.PrimFindKeyValuesByPrefix)
	return h.scan(prefix)
}

func (h *fakeHost) scan(prefix []byte) []host.KeyValue {
	var keys []string
	for k := range h.storage {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]host.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, host.KeyValue{Key: []byte(k[len(prefix):]), Value: h.storage[k]})
	}
	return out
}

func (h *fakeHost) credit(owner base.AccountOwner, amount base.Amount) {
	for i, entry := range h.ledger {
		if bytes.Equal(entry.Owner, owner.Bytes()) {
			h.ledger[i].Balance = entry.Balance.SaturatingAdd(amount)
			return
		}
	}
	h.ledger = append(h.ledger, host.RawOwnerBalance{Owner: owner.Bytes(), Balance: amount})
}
