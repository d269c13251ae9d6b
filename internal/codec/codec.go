// Package codec holds the two serialization formats used across the
// service boundary: JSON for cross-application queries and parameters, and
// deterministic CBOR for scheduled operations.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	modesOnce sync.Once
	encMode   cbor.EncMode
	decMode   cbor.DecMode
	modesErr  error
)

func modes() (cbor.EncMode, cbor.DecMode, error) {
	modesOnce.Do(func() {
		encMode, modesErr = cbor.CoreDetEncOptions().EncMode()
		if modesErr != nil {
			return
		}
		decMode, modesErr = cbor.DecOptions{
			DupMapKey:         cbor.DupMapKeyEnforcedAPF,
			ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		}.DecMode()
	})
	return encMode, decMode, modesErr
}

// EncodeBinary returns the canonical binary form of v.
//
// Map keys are sorted and integers use their shortest form, so equal values
// always produce equal bytes.
func EncodeBinary(v any) ([]byte, error) {
	em, _, err := modes()
	if err != nil {
		return nil, err
	}
	data, err := em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode binary %T: %w", v, err)
	}
	return data, nil
}

// DecodeBinary parses data produced by EncodeBinary into v.
// Duplicate map keys and unknown struct fields are rejected.
func DecodeBinary(data []byte, v any) error {
	_, dm, err := modes()
	if err != nil {
		return err
	}
	if err := dm.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode binary %T: %w", v, err)
	}
	return nil
}

// EncodeJSON serializes v without HTML escaping and without a trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json %T: %w", v, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeJSON parses a single JSON document into v.
func DecodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json %T: %w", v, err)
	}
	return nil
}
