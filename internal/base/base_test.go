package base

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHash = "d0b4a2c1f9e87766554433221100ffeeddccbbaa99887766554433221100ffee"

func TestHashBytes_Keccak256(t *testing.T) {
	// Keccak-256 of the empty input.
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		HashBytes(nil).String())
}

func TestHashWithDomain_SeparatesDomains(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, HashWithDomain("DataBlob", data), HashWithDomain("Operation", data))
	assert.Equal(t, HashWithDomain("DataBlob", data), HashWithDomain("DataBlob", data))
}

func TestParseCryptoHash(t *testing.T) {
	h, err := ParseCryptoHash(sampleHash)
	require.NoError(t, err)
	assert.Equal(t, sampleHash, h.String())

	prefixed, err := ParseCryptoHash("0x" + sampleHash)
	require.NoError(t, err)
	assert.Equal(t, h, prefixed)

	_, err = ParseCryptoHash("abcd")
	assert.Error(t, err)

	_, err = ParseCryptoHash(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestChainID_JSON(t *testing.T) {
	id, err := ParseChainID(sampleHash)
	require.NoError(t, err)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+sampleHash+`"`, string(data))

	var decoded ChainID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestBlobHashOf_Deterministic(t *testing.T) {
	a := BlobHashOf([]byte("hello"))
	b := BlobHashOf([]byte("hello"))
	c := BlobHashOf([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestAccountOwner_Forms(t *testing.T) {
	tests := []struct {
		name  string
		owner AccountOwner
		text  string
		kind  OwnerKind
	}{
		{"chain", ChainOwner, "0x00", OwnerReserved},
		{"reserved", ReservedOwner(7), "0x07", OwnerReserved},
		{"address32", Address32Owner(MustParseCryptoHash(sampleHash)), "0x" + sampleHash, OwnerAddress32},
		{"address20", Address20Owner([20]byte{0xaa, 19: 0x01}), "0xaa00000000000000000000000000000000000001", OwnerAddress20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.owner.String())
			assert.Equal(t, tt.kind, tt.owner.Kind())

			parsed, err := ParseAccountOwner(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.owner, parsed)

			fromWire, err := OwnerFromBytes(tt.owner.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tt.owner, fromWire)
		})
	}
}

func TestAccountOwner_ZeroValueIsChain(t *testing.T) {
	var o AccountOwner
	assert.Equal(t, ChainOwner, o)
}

func TestOwnerFromBytes_Rejects(t *testing.T) {
	for name, raw := range map[string][]byte{
		"empty":         nil,
		"unknown tag":   {9, 1},
		"short addr32":  {byte(OwnerAddress32), 1, 2},
		"long reserved": {byte(OwnerReserved), 1, 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := OwnerFromBytes(raw)
			assert.Error(t, err)
		})
	}
}

func TestAccountOwner_CBOR(t *testing.T) {
	owner := Address32Owner(MustParseCryptoHash(sampleHash))
	data, err := cbor.Marshal(owner)
	require.NoError(t, err)

	var decoded AccountOwner
	require.NoError(t, cbor.Unmarshal(data, &decoded))
	assert.Equal(t, owner, decoded)
}

func TestAmount_Arithmetic(t *testing.T) {
	one := AmountFromTokens(1)
	assert.Equal(t, "1000000000000000000", one.String())

	sum, err := one.CheckedAdd(AmountFromAttos(5))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000005", sum.String())
	assert.Equal(t, 1, sum.Cmp(one))

	_, err = MaxAmount().CheckedAdd(AmountFromAttos(1))
	assert.Error(t, err)
	assert.Equal(t, MaxAmount(), MaxAmount().SaturatingAdd(one))

	_, err = AmountFromAttos(1).CheckedSub(AmountFromAttos(2))
	assert.Error(t, err)

	diff, err := AmountFromAttos(10).CheckedSub(AmountFromAttos(4))
	require.NoError(t, err)
	assert.Equal(t, AmountFromAttos(6), diff)
	assert.True(t, ZeroAmount.IsZero())
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, MaxAmount(), a)

	_, err = ParseAmount("340282366920938463463374607431768211456")
	assert.Error(t, err)

	_, err = ParseAmount("-1")
	assert.Error(t, err)
}

func TestAmount_Encodings(t *testing.T) {
	a := MustParseAmount("123456789012345678901234567890")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"123456789012345678901234567890"`, string(data))

	var fromJSON Amount
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, a, fromJSON)

	bin, err := cbor.Marshal(a)
	require.NoError(t, err)
	var fromCBOR Amount
	require.NoError(t, cbor.Unmarshal(bin, &fromCBOR))
	assert.Equal(t, a, fromCBOR)
}

func TestTimestamp(t *testing.T) {
	ts := TimestampFromMicros(1_700_000_000_123_456)
	assert.Equal(t, uint64(1_700_000_000_123_456), ts.Micros())
	assert.Equal(t, "2023-11-14T22:13:20.123456Z", ts.String())
	assert.Equal(t, "42", BlockHeight(42).String())
}

func TestHTTPRequest_WithHeaderDoesNotAlias(t *testing.T) {
	base := NewHTTPGet("https://oracle.example/price")
	withA := base.WithHeader("Accept", []byte("application/json"))
	withB := withA.WithHeader("X-Trace", []byte("1"))

	assert.Empty(t, base.Headers)
	assert.Len(t, withA.Headers, 1)
	assert.Len(t, withB.Headers, 2)
	assert.Equal(t, MethodGet, withB.Method)
}

func TestHTTPResponse_Header(t *testing.T) {
	resp := HTTPResponse{
		Status:  200,
		Headers: []HTTPHeader{{Name: "Content-Type", Value: []byte("text/plain")}},
	}
	v, ok := resp.Header("content-type")
	assert.True(t, ok)
	assert.Equal(t, []byte("text/plain"), v)
	assert.True(t, resp.OK())

	_, ok = resp.Header("etag")
	assert.False(t, ok)
}
