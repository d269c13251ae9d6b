package abort

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NoAbort(t *testing.T) {
	called := false
	err := Run(func() { called = true })

	require.NoError(t, err)
	assert.True(t, called)
}

func TestRun_ConvertsAbortToError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")

	err := Run(func() {
		Raise(CodeDecodingFailed, "query response did not decode", cause)
	})

	require.Error(t, err)
	assert.True(t, Is(err, CodeDecodingFailed))
	assert.False(t, Is(err, CodeEncodingFailed))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DECODING_FAILED")
	assert.Contains(t, err.Error(), "unexpected end of JSON input")
}

func TestRun_ReraisesForeignPanics(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = Run(func() { panic("boom") })
	})
}

func TestRaisef_FormatsMessage(t *testing.T) {
	err := Run(func() {
		Raisef(CodeBlobMissing, "blob %s not found", "abcd")
	})

	a, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeBlobMissing, a.Code)
	assert.Equal(t, "blob abcd not found", a.Message)
	assert.Nil(t, a.Cause)
}

func TestCatch_ReturnsValue(t *testing.T) {
	v, err := Catch(func() int { return 7 })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = Catch(func() int {
		Raise(CodeHostAbort, "quota", nil)
		return 1
	})
	require.Error(t, err)
	assert.Zero(t, v)
	assert.True(t, Is(err, CodeHostAbort))
}

func TestIs_WrappedAbort(t *testing.T) {
	a := New(CodeReentrantFetch, "cell chain_id re-entered", nil)
	wrapped := fmt.Errorf("execution failed: %w", a)

	assert.True(t, Is(wrapped, CodeReentrantFetch))
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestWith_CopiesDetails(t *testing.T) {
	base := New(CodeHostAbort, "cycle", nil).With("application", "aa")
	extended := base.With("depth", "3")

	assert.Equal(t, map[string]string{"application": "aa"}, base.Details)
	assert.Equal(t, map[string]string{"application": "aa", "depth": "3"}, extended.Details)
}
