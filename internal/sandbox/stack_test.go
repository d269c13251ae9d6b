package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcrt/internal/base"
)

func appID(n byte) base.ApplicationID {
	return base.ApplicationID(base.HashBytes([]byte{n}))
}

func TestCallStack_PushPop(t *testing.T) {
	s := newCallStack(appID(0), 4)
	assert.Equal(t, 0, s.depth())
	assert.Equal(t, appID(0), s.current())

	require.NoError(t, s.push(appID(1)))
	require.NoError(t, s.push(appID(2)))
	assert.Equal(t, 2, s.depth())
	assert.Equal(t, appID(2), s.current())

	s.pop()
	assert.Equal(t, appID(1), s.current())
	s.pop()
	s.pop() // the root is never popped
	assert.Equal(t, appID(0), s.current())
}

func TestCallStack_Cycle(t *testing.T) {
	s := newCallStack(appID(0), 4)
	require.NoError(t, s.push(appID(1)))

	err := s.push(appID(0))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.False(t, IsDepthError(err))
	assert.Contains(t, err.Error(), "CYCLE_DETECTED")
	assert.Equal(t, 1, s.depth())
}

func TestCallStack_Depth(t *testing.T) {
	s := newCallStack(appID(0), 2)
	require.NoError(t, s.push(appID(1)))
	require.NoError(t, s.push(appID(2)))

	err := s.push(appID(3))
	require.Error(t, err)
	assert.True(t, IsDepthError(err))
	assert.Contains(t, err.Error(), "3 > 2 limit")
}

func TestCallStack_Reset(t *testing.T) {
	s := newCallStack(appID(0), 2)
	require.NoError(t, s.push(appID(1)))

	s.reset(appID(9))
	assert.Equal(t, 0, s.depth())
	assert.Equal(t, appID(9), s.current())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(10)
	assert.Equal(t, int64(11), resumed.Next())
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestTraceEvent_Canonical(t *testing.T) {
	e := TraceEvent{Seq: 3, Application: "counter", Primitive: "fetch_owner_balance",
		Detail: map[string]string{"owner": "0x01"}}

	assert.Equal(t, `{"owner":"0x01"}`, e.CanonicalDetail())
	assert.Equal(t, "{}", TraceEvent{}.CanonicalDetail())
	assert.Equal(t, "fetch_owner_balance", e.Canonical()["primitive"])
}
