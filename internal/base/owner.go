package base

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// OwnerKind distinguishes the AccountOwner variants.
type OwnerKind uint8

const (
	// OwnerReserved is a reserved single-byte owner; Reserved(0) is the chain itself.
	OwnerReserved OwnerKind = iota
	// OwnerAddress32 is a 32-byte address (a CryptoHash).
	OwnerAddress32
	// OwnerAddress20 is a 20-byte, EVM-style address.
	OwnerAddress20
)

// AccountOwner identifies the owner of a balance on a chain.
// The zero value is the chain owner, Reserved(0).
type AccountOwner struct {
	kind     OwnerKind
	reserved uint8
	addr32   CryptoHash
	addr20   [20]byte
}

// ChainOwner is the reserved owner standing for the chain balance.
var ChainOwner = ReservedOwner(0)

// ReservedOwner returns Reserved(n).
func ReservedOwner(n uint8) AccountOwner {
	return AccountOwner{kind: OwnerReserved, reserved: n}
}

// Address32Owner returns an owner identified by a 32-byte address.
func Address32Owner(h CryptoHash) AccountOwner {
	return AccountOwner{kind: OwnerAddress32, addr32: h}
}

// Address20Owner returns an owner identified by a 20-byte address.
func Address20Owner(addr [20]byte) AccountOwner {
	return AccountOwner{kind: OwnerAddress20, addr20: addr}
}

// Kind returns the variant.
func (o AccountOwner) Kind() OwnerKind {
	return o.kind
}

// String returns the 0x-prefixed hex form. The length of the hex payload
// (2, 40 or 64 characters) determines the variant.
func (o AccountOwner) String() string {
	switch o.kind {
	case OwnerAddress32:
		return "0x" + o.addr32.String()
	case OwnerAddress20:
		return "0x" + hex.EncodeToString(o.addr20[:])
	default:
		return fmt.Sprintf("0x%02x", o.reserved)
	}
}

// ParseAccountOwner parses the form produced by String.
func ParseAccountOwner(s string) (AccountOwner, error) {
	payload := strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(payload)
	if err != nil {
		return AccountOwner{}, fmt.Errorf("account owner %q: %w", s, err)
	}
	switch len(raw) {
	case 1:
		return ReservedOwner(raw[0]), nil
	case 20:
		var addr [20]byte
		copy(addr[:], raw)
		return Address20Owner(addr), nil
	case CryptoHashLen:
		var h CryptoHash
		copy(h[:], raw)
		return Address32Owner(h), nil
	default:
		return AccountOwner{}, fmt.Errorf("account owner %q: unsupported length %d", s, len(raw))
	}
}

// MustParseAccountOwner is ParseAccountOwner for constants and tests.
func MustParseAccountOwner(s string) AccountOwner {
	o, err := ParseAccountOwner(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Bytes returns the wire form: one variant tag byte followed by the payload.
func (o AccountOwner) Bytes() []byte {
	switch o.kind {
	case OwnerAddress32:
		return append([]byte{byte(OwnerAddress32)}, o.addr32[:]...)
	case OwnerAddress20:
		return append([]byte{byte(OwnerAddress20)}, o.addr20[:]...)
	default:
		return []byte{byte(OwnerReserved), o.reserved}
	}
}

// OwnerFromBytes decodes the wire form produced by Bytes.
func OwnerFromBytes(raw []byte) (AccountOwner, error) {
	if len(raw) == 0 {
		return AccountOwner{}, fmt.Errorf("account owner: empty wire value")
	}
	payload := raw[1:]
	switch OwnerKind(raw[0]) {
	case OwnerReserved:
		if len(payload) != 1 {
			return AccountOwner{}, fmt.Errorf("account owner: reserved payload must be 1 byte, got %d", len(payload))
		}
		return ReservedOwner(payload[0]), nil
	case OwnerAddress32:
		if len(payload) != CryptoHashLen {
			return AccountOwner{}, fmt.Errorf("account owner: address32 payload must be 32 bytes, got %d", len(payload))
		}
		var h CryptoHash
		copy(h[:], payload)
		return Address32Owner(h), nil
	case OwnerAddress20:
		if len(payload) != 20 {
			return AccountOwner{}, fmt.Errorf("account owner: address20 payload must be 20 bytes, got %d", len(payload))
		}
		var addr [20]byte
		copy(addr[:], payload)
		return Address20Owner(addr), nil
	default:
		return AccountOwner{}, fmt.Errorf("account owner: unknown variant tag %d", raw[0])
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o AccountOwner) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *AccountOwner) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountOwner(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// MarshalCBOR encodes the wire form as a CBOR byte string.
func (o AccountOwner) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(o.Bytes())
}

// UnmarshalCBOR decodes a CBOR byte string holding the wire form.
func (o *AccountOwner) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := OwnerFromBytes(raw)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
