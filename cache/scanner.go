package cache

import (
	"context"

	"github.com/localehub/bundle-cache/telemetry"
)

// Report classifies the durable tier's contents.
type Report struct {
	Valid     int
	Expired   int
	Corrupted int
	Total     int
}

// ValidateIntegrity walks the durable tier and classifies every owned
// entry. Valid and expired entries are left in place; corrupted entries
// are removed immediately, since a record that cannot be parsed can never
// be served whatever mode the scan runs in.
func (m *Manager) ValidateIntegrity(ctx context.Context) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.scanLocked(ctx, false)
}

// ClearExpired removes every entry older than MaxAge from both tiers and
// returns the number of entries removed, corrupted ones included.
func (m *Manager) ClearExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cleanupExpiredLocked(ctx)
}

func (m *Manager) cleanupExpiredLocked(ctx context.Context) (int, error) {
	report, err := m.scanLocked(ctx, true)
	if err != nil {
		return 0, err
	}
	return report.Expired + report.Corrupted, nil
}

// scanLocked performs the classification pass shared by ValidateIntegrity
// and ClearExpired. When removeExpired is set, expired entries are deleted
// from both tiers; corrupted entries are always deleted.
func (m *Manager) scanLocked(ctx context.Context, removeExpired bool) (Report, error) {
	keys, err := m.prefixedKeysLocked()
	if err != nil {
		return Report{}, err
	}

	now := m.now()
	report := Report{Total: len(keys)}

	for _, key := range keys {
		stored, err := m.adapter.Get(key)
		if err != nil {
			// Vanished between enumeration and read.
			report.Total--
			continue
		}

		entry, err := m.codec.Decode(stored)
		if err != nil {
			report.Corrupted++
			m.logger.Warn("removing corrupt cache entry", "key", key, "error", err)
			_ = m.adapter.Remove(key)
			m.memory.delete(key)
			continue
		}

		if entry.Metadata.IsStale(now, m.config.MaxAge) {
			report.Expired++
			if removeExpired {
				_ = m.adapter.Remove(key)
				m.memory.delete(key)
			}
			continue
		}

		report.Valid++
	}

	removed := report.Corrupted
	if removeExpired {
		removed += report.Expired
	}
	if removed > 0 {
		telemetry.RecordRemovals(ctx, removed)
		m.logger.Debug("integrity pass removed entries",
			"expired", report.Expired,
			"corrupted", report.Corrupted,
			"removed", removed,
		)
	}

	return report, nil
}
