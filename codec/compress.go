// Package codec converts cache entries to and from their durable string
// representation, applying optional zstd compression.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	bundlecache "github.com/localehub/bundle-cache"
)

// MaxDecompressedSize is the hard cap during decompression to prevent
// compression bombs.
const MaxDecompressedSize = 10 * 1024 * 1024 // 10MB

// Compressor is a reversible transform between a bundle payload and a
// compact string. Payloads are serialized to canonical JSON, zstd
// compressed, and base64 armored so they can live inside a string-typed
// storage value. Safe for concurrent use.
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	mu      sync.RWMutex
}

// NewCompressor creates a compressor with pooled zstd encoder/decoder.
func NewCompressor() (*Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Compressor{
		encoder: enc,
		decoder: dec,
	}, nil
}

// Close releases encoder/decoder resources.
func (c *Compressor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.encoder != nil {
		c.encoder.Close()
		c.encoder = nil
	}
	if c.decoder != nil {
		c.decoder.Close()
		c.decoder = nil
	}
}

// Compress returns the compact string form of a bundle payload.
func (c *Compressor) Compress(data map[string]string) (string, error) {
	// Marshaling a map[string]string cannot fail.
	raw, _ := json.Marshal(data)

	c.mu.RLock()
	enc := c.encoder
	c.mu.RUnlock()

	if enc == nil {
		return "", errors.New("encoder not initialized")
	}

	compressed := enc.EncodeAll(raw, nil)
	return base64.StdEncoding.EncodeToString(compressed), nil
}

// Decompress reverses Compress. Malformed input, including the empty
// string, fails with ErrDecompression; callers treat that as a cache miss.
func (c *Compressor) Decompress(s string) (map[string]string, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", bundlecache.ErrDecompression)
	}

	blob, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundlecache.ErrDecompression, err)
	}

	c.mu.RLock()
	dec := c.decoder
	c.mu.RUnlock()

	if dec == nil {
		return nil, errors.New("decoder not initialized")
	}

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundlecache.ErrDecompression, err)
	}

	if len(raw) > MaxDecompressedSize {
		return nil, fmt.Errorf("%w: decompressed payload exceeds %d bytes", bundlecache.ErrDecompression, MaxDecompressedSize)
	}

	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", bundlecache.ErrDecompression, err)
	}

	return data, nil
}
