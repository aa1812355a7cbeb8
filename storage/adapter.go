// Package storage provides synchronous key-value adapters backing the
// durable cache tier.
package storage

import "errors"

// ErrNotFound is returned when a key does not exist in the adapter.
var ErrNotFound = errors.New("not found")

// Adapter is a synchronous string key-value store. The cache manager is the
// only writer; adapters are not expected to coordinate concurrent external
// mutation.
//
// Keys returns every key in the store, not just cache-owned ones, in a
// stable order. The cache relies on that stability for deterministic
// eviction tie-breaking, and scopes itself to its own keys by prefix.
type Adapter interface {
	// Get retrieves the value at the given key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) (string, error)

	// Set stores a value at the given key, overwriting any existing value.
	// May fail when the backing store rejects the write (e.g. quota).
	Set(key, value string) error

	// Remove deletes the key. Returns nil if the key does not exist
	// (idempotent).
	Remove(key string) error

	// Keys returns all keys in a stable order.
	Keys() ([]string, error)

	// Len returns the number of keys in the store.
	Len() (int, error)
}
