package base

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
)

// AmountDecimals is the number of decimal places between a token and an atto.
const AmountDecimals = 18

var (
	maxAmount     = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	attosPerToken = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(AmountDecimals))
)

// Amount is an unsigned 128-bit quantity of attos.
type Amount struct {
	v uint256.Int
}

// ZeroAmount is the empty balance.
var ZeroAmount = Amount{}

// MaxAmount is the largest representable amount.
func MaxAmount() Amount {
	return Amount{v: *maxAmount}
}

// AmountFromAttos converts an atto count.
func AmountFromAttos(attos uint64) Amount {
	return Amount{v: *uint256.NewInt(attos)}
}

// AmountFromTokens converts a whole-token count.
func AmountFromTokens(tokens uint64) Amount {
	var a Amount
	a.v.Mul(uint256.NewInt(tokens), attosPerToken)
	return a
}

// ParseAmount parses a decimal atto count.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("amount %q: %w", s, err)
	}
	if v.BitLen() > 128 {
		return Amount{}, fmt.Errorf("amount %q: exceeds 128 bits", s)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Attos returns a copy of the underlying atto count.
func (a Amount) Attos() *uint256.Int {
	return a.v.Clone()
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// CheckedAdd returns a+b or an error if the sum exceeds 128 bits.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	var sum Amount
	sum.v.Add(&a.v, &b.v)
	if sum.v.BitLen() > 128 {
		return Amount{}, fmt.Errorf("amount overflow: %s + %s", a, b)
	}
	return sum, nil
}

// SaturatingAdd returns a+b, clamped to MaxAmount.
func (a Amount) SaturatingAdd(b Amount) Amount {
	sum, err := a.CheckedAdd(b)
	if err != nil {
		return MaxAmount()
	}
	return sum
}

// CheckedSub returns a-b or an error if b is larger than a.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	var diff Amount
	if _, underflow := diff.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a, b)
	}
	return diff, nil
}

// String returns the decimal atto count.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalCBOR encodes the minimal big-endian byte string of the atto count.
func (a Amount) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.v.Bytes())
}

// UnmarshalCBOR decodes a big-endian byte string of at most 16 bytes.
func (a *Amount) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > 16 {
		return fmt.Errorf("amount: %d bytes exceeds 128 bits", len(raw))
	}
	a.v.SetBytes(raw)
	return nil
}
