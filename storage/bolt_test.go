package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "cache.db"), WithNoSync(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltGetSet(t *testing.T) {
	b := newTestBolt(t)

	_, err := b.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set("translation_cache_en", `{"data":{}}`))

	v, err := b.Get("translation_cache_en")
	require.NoError(t, err)
	require.Equal(t, `{"data":{}}`, v)

	require.NoError(t, b.Set("translation_cache_en", "v2"))
	v, _ = b.Get("translation_cache_en")
	require.Equal(t, "v2", v)
}

func TestBoltRemoveIdempotent(t *testing.T) {
	b := newTestBolt(t)
	require.NoError(t, b.Set("a", "1"))

	require.NoError(t, b.Remove("a"))
	require.NoError(t, b.Remove("a"))

	_, err := b.Get("a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltKeysByteOrder(t *testing.T) {
	b := newTestBolt(t)
	require.NoError(t, b.Set("c", "3"))
	require.NoError(t, b.Set("a", "1"))
	require.NoError(t, b.Set("b", "2"))

	keys, err := b.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, keys)

	n, err := b.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestBoltReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Set("a", "1"))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	v, err := b.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}
