// Package bundlecache defines the data model shared by the translation
// bundle cache tiers: cached entries, their metadata, storage keys and the
// error taxonomy.
package bundlecache

import (
	"time"
)

// Entry is a cached translation bundle for one language (and optional
// version) together with its bookkeeping metadata.
type Entry struct {
	// Data maps translation keys to translated strings.
	Data map[string]string `json:"data"`

	Metadata Metadata `json:"metadata"`
}

// Metadata describes a cached bundle. It is persisted verbatim inside the
// durable record, so field names and types are part of the storage format.
type Metadata struct {
	// Language is the locale identifier, e.g. "en" or "pt-BR".
	Language string `json:"language"`

	// Version is an opaque version tag. Empty when the bundle is unversioned.
	Version string `json:"version,omitempty"`

	// Timestamp is the write time in unix milliseconds. It drives both TTL
	// staleness and eviction ordering; reads never refresh it.
	Timestamp int64 `json:"timestamp"`

	// Coverage is the caller-supplied completeness ratio of the bundle
	// (0-1). Stored and returned untouched; the cache does not interpret it.
	Coverage float64 `json:"coverage"`

	// Compressed reports whether Data is stored compressed. Only ever true
	// for the durable representation; in-memory entries are always expanded.
	Compressed bool `json:"compressed"`

	// Size is the byte size of the stored data blob: the compressed size
	// when Compressed, the raw serialized size otherwise. Budget accounting
	// sums this field, so it must reflect what was actually written.
	Size int64 `json:"size"`

	// OriginalSize is the raw serialized size. Set whenever a compression
	// attempt was made, even if compression was skipped.
	OriginalSize int64 `json:"originalSize,omitempty"`

	// Digest is the hex BLAKE3 digest of the raw serialized data, verified
	// on decode.
	Digest string `json:"digest,omitempty"`
}

// WrittenAt returns the write time as a time.Time.
func (m Metadata) WrittenAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// IsStale reports whether the entry has outlived maxAge at the given time.
// A non-positive maxAge disables TTL staleness.
func (m Metadata) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(m.WrittenAt()) > maxAge
}

// Key builds the durable-tier storage key for a bundle. The version tag
// participates only when versioning is enabled and a version is present.
func Key(prefix, language, version string, versioned bool) string {
	if versioned && version != "" {
		return prefix + language + "_v" + version
	}
	return prefix + language
}
