package views

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcrt/internal/codec"
	"github.com/roach88/svcrt/internal/host"
)

type mapStorage map[string][]byte

func (m mapStorage) ContainsKey(key []byte) bool {
	_, ok := m[string(key)]
	return ok
}

func (m mapStorage) ReadValueBytes(key []byte) ([]byte, bool) {
	v, ok := m[string(key)]
	return v, ok
}

func (m mapStorage) FindKeysByPrefix(prefix []byte) [][]byte {
	var out [][]byte
	for _, kv := range m.FindKeyValuesByPrefix(prefix) {
		out = append(out, kv.Key)
	}
	return out
}

func (m mapStorage) FindKeyValuesByPrefix(prefix []byte) []host.KeyValue {
	var keys []string
	for k := range m {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]host.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, host.KeyValue{Key: []byte(k[len(prefix):]), Value: m[k]})
	}
	return out
}

func newStore() KeyValueStore {
	return NewKeyValueStore(mapStorage{
		"app/count":  []byte{0x05},
		"app/name":   []byte("counter"),
		"other/name": []byte("x"),
	})
}

func TestKeyValueStore_Reads(t *testing.T) {
	s := newStore()

	ok, err := s.ContainsKey([]byte("app/count"))
	require.NoError(t, err)
	assert.True(t, ok)

	present, err := s.ContainsKeys([][]byte{[]byte("app/name"), []byte("missing")})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, present)

	v, ok, err := s.ReadValueBytes([]byte("app/name"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("counter"), v)

	multi, err := s.ReadMultiValuesBytes([][]byte{[]byte("missing"), []byte("app/count")})
	require.NoError(t, err)
	assert.Nil(t, multi[0])
	assert.Equal(t, []byte{0x05}, multi[1])

	keys, err := s.FindKeysByPrefix([]byte("app/"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("count"), []byte("name")}, keys)
}

func TestKeyValueStore_KeyTooLong(t *testing.T) {
	s := newStore()
	long := bytes.Repeat([]byte("k"), MaxKeySize+1)

	_, err := s.ContainsKey(long)
	var tooLong *KeyTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, MaxKeySize+1, tooLong.Size)

	_, _, err = s.ReadValueBytes(long)
	assert.Error(t, err)
	_, err = s.FindKeyValuesByPrefix(long)
	assert.Error(t, err)
}

func TestReadValue(t *testing.T) {
	encoded, err := codec.EncodeBinary(uint64(77))
	require.NoError(t, err)
	s := NewKeyValueStore(mapStorage{"n": encoded, "bad": {0xff}})

	n, ok, err := ReadValue[uint64](s, []byte("n"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(77), n)

	_, ok, err = ReadValue[uint64](s, []byte("absent"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ReadValue[uint64](s, []byte("bad"))
	assert.Error(t, err)
}

func TestViewStorageContext_Scoping(t *testing.T) {
	root := NewViewStorageContext(newStore(), nil)
	assert.Empty(t, root.BaseKey())

	app := root.Child([]byte("app/"))
	assert.Equal(t, []byte("app/"), app.BaseKey())

	v, ok, err := app.ReadValueBytes([]byte("name"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("counter"), v)

	ok, err = app.ContainsKey([]byte("other/name"))
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := app.FindKeyValuesByPrefix(nil)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	keys, err := app.FindKeysByPrefix([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ount")}, keys)
}

func TestViewStorageContext_BaseKeyIsCopied(t *testing.T) {
	base := []byte("app/")
	ctx := NewViewStorageContext(newStore(), base)
	base[0] = 'X'

	got := ctx.BaseKey()
	got[1] = 'Y'
	assert.Equal(t, []byte("app/"), ctx.BaseKey())
}
