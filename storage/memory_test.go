package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()

	_, err := m.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set("a", "1"))

	v, err := m.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	// Overwrite
	require.NoError(t, m.Set("a", "2"))
	v, _ = m.Get("a")
	require.Equal(t, "2", v)
}

func TestMemoryRemoveIdempotent(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("a", "1"))

	require.NoError(t, m.Remove("a"))
	require.NoError(t, m.Remove("a"))

	_, err := m.Get("a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKeysLexicalOrder(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("b", "2"))
	require.NoError(t, m.Set("a", "1"))
	require.NoError(t, m.Set("c", "3"))

	keys, err := m.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, keys)

	n, err := m.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
