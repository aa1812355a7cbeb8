package codec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	bundlecache "github.com/localehub/bundle-cache"
)

func newTestCompressor(t *testing.T) *Compressor {
	t.Helper()
	c, err := NewCompressor()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCompressRoundTrip(t *testing.T) {
	c := newTestCompressor(t)

	data := map[string]string{
		"app.title":    "My Application",
		"app.subtitle": "My Application Subtitle",
		"nav.home":     "Home",
		"nav.settings": "Settings",
	}

	compact, err := c.Compress(data)
	require.NoError(t, err)
	require.NotEmpty(t, compact)

	got, err := c.Decompress(compact)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCompressShrinksRedundantPayload(t *testing.T) {
	c := newTestCompressor(t)

	data := make(map[string]string)
	for i := 0; i < 100; i++ {
		data[strings.Repeat("k", 10)+string(rune('a'+i%26))+string(rune('a'+i/26))] = strings.Repeat("translated value ", 5)
	}

	compact, err := c.Compress(data)
	require.NoError(t, err)
	require.Less(t, int64(len(compact)), bundlecache.SizeOf(data))
}

func TestDecompressEmptyString(t *testing.T) {
	c := newTestCompressor(t)

	_, err := c.Decompress("")
	require.ErrorIs(t, err, bundlecache.ErrDecompression)
}

func TestDecompressMalformedBase64(t *testing.T) {
	c := newTestCompressor(t)

	_, err := c.Decompress("not*valid*base64")
	require.ErrorIs(t, err, bundlecache.ErrDecompression)
}

func TestDecompressNotZstd(t *testing.T) {
	c := newTestCompressor(t)

	garbage := base64.StdEncoding.EncodeToString([]byte("this is not a zstd frame"))
	_, err := c.Decompress(garbage)
	require.ErrorIs(t, err, bundlecache.ErrDecompression)
}

func TestDecompressNotAStringMap(t *testing.T) {
	c := newTestCompressor(t)

	// A valid zstd frame whose content is not a JSON object.
	enc, err := NewCompressor()
	require.NoError(t, err)
	defer enc.Close()

	frame := enc.encoder.EncodeAll([]byte("[1,2,3]"), nil)
	_, err = c.Decompress(base64.StdEncoding.EncodeToString(frame))
	require.ErrorIs(t, err, bundlecache.ErrDecompression)
}
