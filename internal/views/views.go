// Package views exposes host storage to query code: a key-value store handle
// and the storage context that views are rooted at.
package views

import (
	"bytes"
	"fmt"

	"github.com/roach88/svcrt/internal/codec"
	"github.com/roach88/svcrt/internal/host"
)

// MaxKeySize is the largest key the host accepts.
const MaxKeySize = 900

// KeyTooLongError is returned for keys longer than MaxKeySize.
type KeyTooLongError struct {
	Size int
}

func (e *KeyTooLongError) Error() string {
	return fmt.Sprintf("key of %d bytes exceeds maximum of %d", e.Size, MaxKeySize)
}

func checkKey(key []byte) error {
	if len(key) > MaxKeySize {
		return &KeyTooLongError{Size: len(key)}
	}
	return nil
}

// KeyValueStore is a read-only handle on the application's storage.
type KeyValueStore struct {
	storage host.Storage
}

// NewKeyValueStore wraps the host storage primitives.
func NewKeyValueStore(storage host.Storage) KeyValueStore {
	return KeyValueStore{storage: storage}
}

// ContainsKey reports whether key is present.
func (s KeyValueStore) ContainsKey(key []byte) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	return s.storage.ContainsKey(key), nil
}

// ContainsKeys reports presence for each key, in order.
func (s KeyValueStore) ContainsKeys(keys [][]byte) ([]bool, error) {
	out := make([]bool, len(keys))
	for i, key := range keys {
		ok, err := s.ContainsKey(key)
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return out, nil
}

// ReadValueBytes returns the value stored at key, or nil and false.
func (s KeyValueStore) ReadValueBytes(key []byte) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	value, ok := s.storage.ReadValueBytes(key)
	return value, ok, nil
}

// ReadMultiValuesBytes reads several keys. Missing keys yield nil entries.
func (s KeyValueStore) ReadMultiValuesBytes(keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		value, _, err := s.ReadValueBytes(key)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

// FindKeysByPrefix returns the suffixes of all keys starting with prefix.
func (s KeyValueStore) FindKeysByPrefix(prefix []byte) ([][]byte, error) {
	if err := checkKey(prefix); err != nil {
		return nil, err
	}
	return s.storage.FindKeysByPrefix(prefix), nil
}

// FindKeyValuesByPrefix returns the entries whose key starts with prefix,
// keyed by suffix.
func (s KeyValueStore) FindKeyValuesByPrefix(prefix []byte) ([]host.KeyValue, error) {
	if err := checkKey(prefix); err != nil {
		return nil, err
	}
	return s.storage.FindKeyValuesByPrefix(prefix), nil
}

// ReadValue reads and decodes a binary-encoded value. The boolean is false
// when the key is absent.
func ReadValue[T any](s KeyValueStore, key []byte) (T, bool, error) {
	var v T
	raw, ok, err := s.ReadValueBytes(key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := codec.DecodeBinary(raw, &v); err != nil {
		return v, false, fmt.Errorf("read value %x: %w", key, err)
	}
	return v, true, nil
}

// ViewStorageContext is a KeyValueStore scoped under a base key. Views built
// on a context see only the keys below it.
type ViewStorageContext struct {
	store   KeyValueStore
	baseKey []byte
}

// NewViewStorageContext returns a context rooted at baseKey.
func NewViewStorageContext(store KeyValueStore, baseKey []byte) ViewStorageContext {
	return ViewStorageContext{store: store, baseKey: bytes.Clone(baseKey)}
}

// Store returns the underlying key-value store.
func (c ViewStorageContext) Store() KeyValueStore {
	return c.store
}

// BaseKey returns a copy of the base key.
func (c ViewStorageContext) BaseKey() []byte {
	return bytes.Clone(c.baseKey)
}

// Child returns a context rooted at the base key extended by suffix.
func (c ViewStorageContext) Child(suffix []byte) ViewStorageContext {
	return ViewStorageContext{store: c.store, baseKey: c.join(suffix)}
}

// ContainsKey reports whether key is present below the base key.
func (c ViewStorageContext) ContainsKey(key []byte) (bool, error) {
	return c.store.ContainsKey(c.join(key))
}

// ReadValueBytes reads key below the base key.
func (c ViewStorageContext) ReadValueBytes(key []byte) ([]byte, bool, error) {
	return c.store.ReadValueBytes(c.join(key))
}

// FindKeysByPrefix searches below the base key.
func (c ViewStorageContext) FindKeysByPrefix(prefix []byte) ([][]byte, error) {
	return c.store.FindKeysByPrefix(c.join(prefix))
}

// FindKeyValuesByPrefix searches below the base key.
func (c ViewStorageContext) FindKeyValuesByPrefix(prefix []byte) ([]host.KeyValue, error) {
	return c.store.FindKeyValuesByPrefix(c.join(prefix))
}

func (c ViewStorageContext) join(key []byte) []byte {
	out := make([]byte, 0, len(c.baseKey)+len(key))
	out = append(out, c.baseKey...)
	return append(out, key...)
}
