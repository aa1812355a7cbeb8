package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localehub/bundle-cache/storage"
)

// seedScanFixture writes one fresh, one expired and one corrupt entry.
func seedScanFixture(t *testing.T, mgr *Manager, adapter *storage.Memory) {
	t.Helper()
	ctx := context.Background()
	baseTime := time.Now()

	mgr.now = func() time.Time { return baseTime.Add(-48 * time.Hour) }
	require.NoError(t, mgr.Set(ctx, "de", map[string]string{"a": "alt"}, SetOptions{}))

	mgr.now = func() time.Time { return baseTime }
	require.NoError(t, mgr.Set(ctx, "en", map[string]string{"a": "new"}, SetOptions{}))

	require.NoError(t, adapter.Set("i18n_xx", "{broken record"))
}

func TestValidateIntegrityClassifies(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAge = 24 * time.Hour
	mgr, adapter := newTestManager(t, cfg)
	seedScanFixture(t, mgr, adapter)

	report, err := mgr.ValidateIntegrity(context.Background())
	require.NoError(t, err)

	require.Equal(t, Report{Valid: 1, Expired: 1, Corrupted: 1, Total: 3}, report)

	// Corrupt entries are gone even in the non-mutating scan; expired ones
	// stay until ClearExpired asks for them.
	_, err = adapter.Get("i18n_xx")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = adapter.Get("i18n_de")
	require.NoError(t, err)
}

func TestClearExpiredRemovesFromBothTiers(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAge = 24 * time.Hour
	mgr, adapter := newTestManager(t, cfg)
	seedScanFixture(t, mgr, adapter)
	ctx := context.Background()

	removed, err := mgr.ClearExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed) // the expired entry plus the corrupt one

	_, err = adapter.Get("i18n_de")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, ok := mgr.memory.get("i18n_de")
	require.False(t, ok)

	// The fresh entry survives untouched.
	entry, ok := mgr.Get(ctx, "en", "")
	require.True(t, ok)
	require.Equal(t, "new", entry.Data["a"])
}

func TestClearExpiredNoTTL(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAge = 0
	mgr, _ := newTestManager(t, cfg)
	ctx := context.Background()

	baseTime := time.Now()
	mgr.now = func() time.Time { return baseTime.Add(-365 * 24 * time.Hour) }
	require.NoError(t, mgr.Set(ctx, "en", map[string]string{"a": "b"}, SetOptions{}))

	mgr.now = func() time.Time { return baseTime }
	removed, err := mgr.ClearExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)

	_, ok := mgr.Get(ctx, "en", "")
	require.True(t, ok)
}

func TestScanIgnoresForeignKeys(t *testing.T) {
	mgr, adapter := newTestManager(t, testConfig())

	require.NoError(t, adapter.Set("other_app_state", "not ours, not json either"))

	report, err := mgr.ValidateIntegrity(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{}, report)

	_, err = adapter.Get("other_app_state")
	require.NoError(t, err)
}
