package bundlecache

import (
	"errors"
	"fmt"
)

var (
	// ErrDecompression is returned when a compressed payload cannot be
	// expanded. Callers treat it as a cache miss, never as a failure.
	ErrDecompression = errors.New("malformed compressed payload")

	// ErrCorruptEntry is returned when a stored record cannot be parsed or
	// fails digest verification. Callers treat it as a miss and remove the
	// offending key.
	ErrCorruptEntry = errors.New("corrupt cache record")
)

// WriteError reports that the durable storage adapter rejected a write,
// e.g. because its quota was exceeded even after eviction. Unlike the
// read-side errors it propagates to the caller: the in-memory write may
// already have succeeded, and the caller needs to know durability was lost.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing cache entry %q: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
