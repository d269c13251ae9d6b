// Package base defines the chain-level value types exchanged with the host:
// hashes and identifiers, account owners, amounts, block heights, timestamps
// and the HTTP oracle envelope.
//
// Every type has a text form (used by JSON and by scenario files) and a
// canonical binary form (used by the deterministic CBOR operation encoding).
package base
