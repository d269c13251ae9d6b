package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcrt/internal/abi"
	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/host"
)

var counterApp = abi.WithAbi[counterAbi](base.ApplicationID(base.HashBytes([]byte("counter"))))

func TestQueryApplication_RoundTrip(t *testing.T) {
	h := newFakeHost()
	var seen []byte
	h.dispatch = func(app base.ApplicationID, query []byte) []byte {
		assert.Equal(t, counterApp.ForgetAbi(), app)
		seen = query
		return []byte(`{"value":41}`)
	}
	rt := newRuntime(h)

	var resp counterResponse
	mustRun(t, func() {
		resp = QueryApplication(rt, counterApp, counterQuery{Kind: "value"})
	})

	assert.Equal(t, counterResponse{Value: 41}, resp)
	assert.JSONEq(t, `{"kind":"value"}`, string(seen))
}

func TestQueryApplication_UndecodableResponseAborts(t *testing.T) {
	h := newFakeHost()
	h.dispatch = func(base.ApplicationID, []byte) []byte {
		return []byte(`{"value":"not a number"}`)
	}
	rt := newRuntime(h)

	err := abort.Run(func() {
		QueryApplication(rt, counterApp, counterQuery{Kind: "value"})
	})

	a, ok := abort.As(err)
	require.True(t, ok)
	assert.Equal(t, abort.CodeDecodingFailed, a.Code)
	assert.Equal(t, counterApp.String(), a.Details["application"])
}

func TestQueryApplication_UnencodableQueryAborts(t *testing.T) {
	type badAbi = abi.Abi[func(), counterResponse]
	h := newFakeHost()
	rt := newRuntime(h)
	app := abi.WithAbi[badAbi](counterApp.ForgetAbi())

	err := abort.Run(func() {
		QueryApplication(rt, app, func() {})
	})

	assert.True(t, abort.Is(err, abort.CodeEncodingFailed))
	assert.Zero(t, h.calls[host.PrimDispatchApplicationQuery])
}

func TestQueryApplication_HostAbortPropagates(t *testing.T) {
	rt := newRuntime(newFakeHost())

	err := abort.Run(func() {
		QueryApplication(rt, counterApp, counterQuery{Kind: "value"})
	})
	assert.True(t, abort.Is(err, abort.CodeHostAbort))
}

func TestQueryApplication_NestedCallSeesCachedFacts(t *testing.T) {
	h := newFakeHost()
	rt := newRuntime(h)

	var inner base.ChainID
	h.dispatch = func(base.ApplicationID, []byte) []byte {
		// The target re-enters the same runtime while the outer call is
		// still in progress.
		inner = rt.ChainID()
		return []byte(`{"value":1}`)
	}

	var outer base.ChainID
	mustRun(t, func() {
		outer = rt.ChainID()
		QueryApplication(rt, counterApp, counterQuery{Kind: "value"})
	})

	assert.Equal(t, outer, inner)
	assert.Equal(t, 1, h.calls[host.PrimFetchChainID])
}

func TestQueryApplication_FactsAfterQuery(t *testing.T) {
	h := newFakeHost()
	rt := newRuntime(h)
	h.dispatch = func(base.ApplicationID, []byte) []byte {
		return []byte(`{"value":2}`)
	}

	mustRun(t, func() {
		resp := QueryApplication(rt, counterApp, counterQuery{Kind: "total"})
		assert.Equal(t, uint64(2), resp.Value)
		assert.Equal(t, base.BlockHeight(7), rt.NextBlockHeight())
	})
}
