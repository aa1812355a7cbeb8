package codec

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bundlecache "github.com/localehub/bundle-cache"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(slog.Default())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testEntry(data map[string]string) *bundlecache.Entry {
	return &bundlecache.Entry{
		Data: data,
		Metadata: bundlecache.Metadata{
			Language:  "en",
			Timestamp: time.Now().UnixMilli(),
			Coverage:  0.95,
		},
	}
}

func TestEncodeBelowThresholdStaysRaw(t *testing.T) {
	c := newTestCodec(t)

	entry := testEntry(map[string]string{"nav.home": "Home"})
	stored, meta, err := c.Encode(entry, EncodeOptions{Compress: true, Threshold: 1024})
	require.NoError(t, err)

	require.False(t, meta.Compressed)
	require.Equal(t, bundlecache.SizeOf(entry.Data), meta.Size)
	require.Zero(t, meta.OriginalSize)
	require.NotEmpty(t, meta.Digest)

	got, err := c.Decode(stored)
	require.NoError(t, err)
	require.Equal(t, entry.Data, got.Data)
}

func TestEncodeAboveThresholdCompresses(t *testing.T) {
	c := newTestCodec(t)

	data := make(map[string]string)
	for i := 0; i < 60; i++ {
		data[string(rune('a'+i%26))+string(rune('a'+i/26))] = strings.Repeat("translated value ", 3)
	}
	require.Greater(t, bundlecache.SizeOf(data), int64(1024))

	entry := testEntry(data)
	stored, meta, err := c.Encode(entry, EncodeOptions{Compress: true, Threshold: 1024})
	require.NoError(t, err)

	require.True(t, meta.Compressed)
	require.Equal(t, bundlecache.SizeOf(data), meta.OriginalSize)
	require.Less(t, meta.Size, meta.OriginalSize)

	got, err := c.Decode(stored)
	require.NoError(t, err)
	require.Equal(t, data, got.Data)

	// The decoded copy is always expanded.
	require.False(t, got.Metadata.Compressed)
	require.Equal(t, meta.Size, got.Metadata.Size)
	require.Equal(t, meta.OriginalSize, got.Metadata.OriginalSize)
}

func TestEncodeCompressionDisabled(t *testing.T) {
	c := newTestCodec(t)

	data := map[string]string{"k": strings.Repeat("v", 4096)}
	_, meta, err := c.Encode(testEntry(data), EncodeOptions{Compress: false, Threshold: 1024})
	require.NoError(t, err)

	require.False(t, meta.Compressed)
	require.Zero(t, meta.OriginalSize)
}

func TestDecodeMalformedRecord(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Decode("{not json")
	require.ErrorIs(t, err, bundlecache.ErrCorruptEntry)

	_, err = c.Decode(`{"data":"oops","metadata":{"language":"en"}}`)
	require.ErrorIs(t, err, bundlecache.ErrCorruptEntry)
}

func TestDecodeDigestMismatch(t *testing.T) {
	c := newTestCodec(t)

	stored, _, err := c.Encode(testEntry(map[string]string{"greeting": "hello"}), EncodeOptions{})
	require.NoError(t, err)

	// Tamper with the payload without touching the recorded digest.
	tampered := strings.Replace(stored, "hello", "howdy", 1)
	require.NotEqual(t, stored, tampered)

	_, err = c.Decode(tampered)
	require.ErrorIs(t, err, bundlecache.ErrCorruptEntry)
}

func TestDecodeCompressedGarbagePayload(t *testing.T) {
	c := newTestCodec(t)

	rec := map[string]any{
		"data": "AAAA",
		"metadata": map[string]any{
			"language":   "en",
			"timestamp":  time.Now().UnixMilli(),
			"compressed": true,
			"size":       4,
		},
	}
	blob, err := json.Marshal(rec)
	require.NoError(t, err)

	_, err = c.Decode(string(blob))
	require.ErrorIs(t, err, bundlecache.ErrDecompression)
}

func TestDecodeMetadataSkipsPayload(t *testing.T) {
	c := newTestCodec(t)

	entry := testEntry(map[string]string{"a": "b"})
	stored, want, err := c.Encode(entry, EncodeOptions{})
	require.NoError(t, err)

	meta, err := c.DecodeMetadata(stored)
	require.NoError(t, err)
	require.Equal(t, want, meta)

	_, err = c.DecodeMetadata("{not json")
	require.ErrorIs(t, err, bundlecache.ErrCorruptEntry)
}
