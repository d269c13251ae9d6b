package base

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// CryptoHashLen is the size of a CryptoHash in bytes.
const CryptoHashLen = 32

// CryptoHash is a Keccak-256 digest.
type CryptoHash [CryptoHashLen]byte

// HashBytes computes the Keccak-256 digest of data.
func HashBytes(data []byte) CryptoHash {
	var h CryptoHash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	hasher.Sum(h[:0])
	return h
}

// HashWithDomain computes Keccak-256 over "domain::" followed by data.
// The domain prefix keeps digests of different value kinds apart.
func HashWithDomain(domain string, data []byte) CryptoHash {
	var h CryptoHash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(domain))
	hasher.Write([]byte("::"))
	hasher.Write(data)
	hasher.Sum(h[:0])
	return h
}

// ParseCryptoHash parses a 64-character hex string, with or without 0x prefix.
func ParseCryptoHash(s string) (CryptoHash, error) {
	var h CryptoHash
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*CryptoHashLen {
		return h, fmt.Errorf("crypto hash: expected %d hex characters, got %d", 2*CryptoHashLen, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("crypto hash: %w", err)
	}
	return h, nil
}

// MustParseCryptoHash is ParseCryptoHash for constants and tests.
func MustParseCryptoHash(s string) CryptoHash {
	h, err := ParseCryptoHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the lowercase hex form without prefix.
func (h CryptoHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether every byte is zero.
func (h CryptoHash) IsZero() bool {
	return h == CryptoHash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h CryptoHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *CryptoHash) UnmarshalText(text []byte) error {
	parsed, err := ParseCryptoHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
