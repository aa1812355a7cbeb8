package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"

	bundlecache "github.com/localehub/bundle-cache"
)

// record is the shape of the serialized object written to the durable tier.
// Data is either the raw payload object or, when metadata.compressed, a
// base64 zstd string.
type record struct {
	Data     json.RawMessage      `json:"data"`
	Metadata bundlecache.Metadata `json:"metadata"`
}

// EncodeOptions carries the compression settings active for one encode.
// They are passed per call so configuration updates take effect on the next
// operation without rebuilding the codec.
type EncodeOptions struct {
	// Compress enables compression attempts.
	Compress bool

	// Threshold is the minimum raw payload size in bytes before a
	// compression attempt is made.
	Threshold int64
}

// Codec (de)serializes cache entries to and from the durable-tier string
// representation.
type Codec struct {
	comp   *Compressor
	logger *slog.Logger
}

// New creates a codec with its own compressor.
func New(logger *slog.Logger) (*Codec, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comp, err := NewCompressor()
	if err != nil {
		return nil, err
	}
	return &Codec{comp: comp, logger: logger}, nil
}

// Close releases compressor resources.
func (c *Codec) Close() {
	c.comp.Close()
}

// Encode serializes an entry for durable storage. When compression is
// enabled and the raw payload exceeds the threshold, the payload is
// compressed; a compression failure falls back to storing uncompressed and
// logs a warning, never failing the write. The returned metadata has
// Compressed, Size, OriginalSize and Digest filled in.
func (c *Codec) Encode(e *bundlecache.Entry, opts EncodeOptions) (string, bundlecache.Metadata, error) {
	// Marshaling a map[string]string cannot fail.
	raw, _ := json.Marshal(e.Data)

	meta := e.Metadata
	meta.Compressed = false
	meta.Size = int64(len(raw))
	meta.OriginalSize = 0
	meta.Digest = bundlecache.DigestBytes(raw).String()

	dataField := json.RawMessage(raw)

	if opts.Compress && int64(len(raw)) > opts.Threshold {
		meta.OriginalSize = int64(len(raw))

		armored, err := c.comp.Compress(e.Data)
		switch {
		case err != nil:
			c.logger.Warn("compression failed, storing uncompressed",
				"language", meta.Language,
				"error", err,
			)
		case int64(len(armored)) < int64(len(raw)):
			meta.Compressed = true
			meta.Size = int64(len(armored))
			// A string payload always marshals cleanly.
			dataField, _ = json.Marshal(armored)
		}
		// Compressed form no smaller than raw: keep the raw payload.
	}

	rec := record{Data: dataField, Metadata: meta}
	blob, err := json.Marshal(rec)
	if err != nil {
		return "", bundlecache.Metadata{}, fmt.Errorf("encoding record: %w", err)
	}

	return string(blob), meta, nil
}

// Decode parses a stored record back into an entry, expanding compressed
// payloads and verifying the payload digest. The returned entry always has
// Compressed=false; decompression happens exactly once per durable read.
// Parse and digest failures return ErrCorruptEntry; expansion failures
// return ErrDecompression.
func (c *Codec) Decode(stored string) (*bundlecache.Entry, error) {
	var rec record
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", bundlecache.ErrCorruptEntry, err)
	}

	meta := rec.Metadata

	var data map[string]string
	if meta.Compressed {
		var armored string
		if err := json.Unmarshal(rec.Data, &armored); err != nil {
			return nil, fmt.Errorf("%w: compressed payload is not a string: %v", bundlecache.ErrCorruptEntry, err)
		}
		expanded, err := c.comp.Decompress(armored)
		if err != nil {
			return nil, err
		}
		data = expanded
	} else {
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", bundlecache.ErrCorruptEntry, err)
		}
	}

	if meta.Digest != "" {
		want, err := bundlecache.ParseDigest(meta.Digest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", bundlecache.ErrCorruptEntry, err)
		}
		raw, _ := json.Marshal(data)
		if bundlecache.DigestBytes(raw) != want {
			return nil, fmt.Errorf("%w: payload digest mismatch", bundlecache.ErrCorruptEntry)
		}
	}

	// The in-memory tier only ever holds expanded entries.
	meta.Compressed = false

	return &bundlecache.Entry{Data: data, Metadata: meta}, nil
}

// DecodeMetadata parses only the metadata of a stored record, without
// expanding or verifying the payload. Used when enumerating the durable
// tier for budget accounting and eviction planning.
func (c *Codec) DecodeMetadata(stored string) (bundlecache.Metadata, error) {
	var rec record
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		return bundlecache.Metadata{}, fmt.Errorf("%w: %v", bundlecache.ErrCorruptEntry, err)
	}
	return rec.Metadata, nil
}
