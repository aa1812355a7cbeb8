package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	bundlecache "github.com/localehub/bundle-cache"
	"github.com/localehub/bundle-cache/codec"
	"github.com/localehub/bundle-cache/storage"
	"github.com/localehub/bundle-cache/telemetry"
)

// Config holds cache configuration.
type Config struct {
	// MaxAge is the TTL after which an entry is considered stale on read
	// and eligible for ClearExpired. Zero means no TTL.
	MaxAge time.Duration

	// MaxSize is the total byte budget for the durable tier. When a write
	// would exceed it, expired entries are cleaned up first and then
	// oldest-write-first eviction makes room. Zero means no limit.
	MaxSize int64

	// CompressionThreshold is the minimum raw payload size in bytes before
	// compression is attempted.
	CompressionThreshold int64

	// EnableCompression is the master switch for compression attempts.
	EnableCompression bool

	// EnableVersioning controls whether the version tag participates in
	// the cache key.
	EnableVersioning bool

	// StoragePrefix namespaces every durable-tier key. Clear and key
	// enumeration are scoped to it, so the cache never touches unrelated
	// keys in a shared store.
	StoragePrefix string

	// Logger for cache events.
	Logger *slog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		MaxAge:               7 * 24 * time.Hour, // 7 days
		MaxSize:              5 * 1024 * 1024,    // 5 MB
		CompressionThreshold: 1024,
		EnableCompression:    true,
		EnableVersioning:     false,
		StoragePrefix:        "translation_cache_",
		Logger:               slog.Default(),
	}
}

// ConfigPatch is a partial configuration update. Nil fields are left
// unchanged. Changes take effect on the next operation; already-cached
// entries are not re-validated.
type ConfigPatch struct {
	MaxAge               *time.Duration
	MaxSize              *int64
	CompressionThreshold *int64
	EnableCompression    *bool
	EnableVersioning     *bool
	StoragePrefix        *string
}

// SetOptions carries the caller-supplied metadata for a write.
type SetOptions struct {
	Version  string
	Coverage float64
}

// Manager orchestrates the memory and durable tiers.
//
// It assumes it is the only writer of both tiers; a mutex serializes its
// own operations, but external mutation of the durable store by another
// process is out of scope and can make the memory tier stale. That is a
// documented limitation of the design, not something the manager guards
// against, since the stores it targets are single-process.
type Manager struct {
	mu      sync.Mutex
	config  Config
	adapter storage.Adapter
	codec   *codec.Codec
	memory  *memoryTier
	stats   *statsCollector
	logger  *slog.Logger
	now     func() time.Time
	sf      singleflight.Group
}

// New creates a cache manager over the given storage adapter.
func New(adapter storage.Adapter, cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c, err := codec.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Manager{
		config:  cfg,
		adapter: adapter,
		codec:   c,
		memory:  newMemoryTier(),
		stats:   &statsCollector{},
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

// Close releases codec resources. The storage adapter is owned by the
// caller and is not closed.
func (m *Manager) Close() {
	m.codec.Close()
}

// Get returns the cached bundle for a language, or false when no fresh
// entry exists. Corrupt and stale durable entries are removed on the way
// through and reported as a plain miss; the caller treats a miss exactly
// like "never cached".
func (m *Manager) Get(ctx context.Context, language, version string) (*bundlecache.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.keyLocked(language, version)
	now := m.now()

	if e, ok := m.memory.get(key); ok {
		if !e.Metadata.IsStale(now, m.config.MaxAge) {
			m.stats.recordHit()
			telemetry.RecordLookup(ctx, telemetry.LookupMemoryHit)
			return e, true
		}
		// Stale in memory: drop it and fall through to the miss path.
		m.memory.delete(key)
	}

	stored, err := m.adapter.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("durable tier read failed", "key", key, "error", err)
		}
		return m.missLocked(ctx)
	}

	e, err := m.codec.Decode(stored)
	if err != nil {
		m.logger.Warn("removing unreadable cache entry", "key", key, "error", err)
		_ = m.adapter.Remove(key)
		return m.missLocked(ctx)
	}

	if e.Metadata.IsStale(now, m.config.MaxAge) {
		_ = m.adapter.Remove(key)
		return m.missLocked(ctx)
	}

	m.memory.set(key, e)
	m.stats.recordHit()
	telemetry.RecordLookup(ctx, telemetry.LookupDurableHit)
	return e, true
}

func (m *Manager) missLocked(ctx context.Context) (*bundlecache.Entry, bool) {
	m.stats.recordMiss()
	telemetry.RecordLookup(ctx, telemetry.LookupMiss)
	return nil, false
}

// Set writes a bundle through both tiers. The byte budget is enforced
// before the durable write: expired entries are cleaned up first, then
// oldest-write-first eviction frees the remaining shortfall from both
// tiers. An adapter write failure propagates as *bundlecache.WriteError;
// by then the in-memory write has already happened, deliberately, so the
// caller learns durability was lost while reads keep working.
func (m *Manager) Set(ctx context.Context, language string, data map[string]string, opts SetOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.setLocked(ctx, language, data, opts)
}

func (m *Manager) setLocked(ctx context.Context, language string, data map[string]string, opts SetOptions) error {
	key := m.keyLocked(language, opts.Version)

	entry := &bundlecache.Entry{
		Data: data,
		Metadata: bundlecache.Metadata{
			Language:  language,
			Version:   opts.Version,
			Timestamp: m.now().UnixMilli(),
			Coverage:  opts.Coverage,
		},
	}

	stored, meta, err := m.codec.Encode(entry, codec.EncodeOptions{
		Compress:  m.config.EnableCompression,
		Threshold: m.config.CompressionThreshold,
	})
	if err != nil {
		return err
	}

	if meta.Compressed {
		m.stats.observeCompression(meta.Size, meta.OriginalSize)
		telemetry.RecordCompressionRatio(ctx, float64(meta.Size)/float64(meta.OriginalSize))
	}

	if m.config.MaxSize > 0 {
		if meta.Size > m.config.MaxSize {
			m.logger.Warn("entry alone exceeds the byte budget",
				"key", key,
				"size", meta.Size,
				"max_size", m.config.MaxSize,
			)
		}

		if err := m.makeRoomLocked(ctx, key, meta.Size); err != nil {
			m.logger.Warn("making room for write failed", "key", key, "error", err)
		}
	}

	// Memory tier holds the expanded form with final metadata.
	memMeta := meta
	memMeta.Compressed = false
	m.memory.set(key, &bundlecache.Entry{Data: data, Metadata: memMeta})

	if err := m.adapter.Set(key, stored); err != nil {
		return &bundlecache.WriteError{Key: key, Err: err}
	}

	telemetry.RecordWrite(ctx, meta.Size, meta.Compressed)
	return nil
}

// Remove deletes a bundle from both tiers. Removing an absent key is a
// no-op.
func (m *Manager) Remove(ctx context.Context, language, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.keyLocked(language, version)
	m.memory.delete(key)
	return m.adapter.Remove(key)
}

// Clear removes every durable key under the configured storage prefix and
// empties the memory tier. Keys outside the prefix are never touched.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.prefixedKeysLocked()
	if err != nil {
		return err
	}

	var firstErr error
	for _, key := range keys {
		if err := m.adapter.Remove(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.memory.clear()
	return firstErr
}

// Stats returns a snapshot of cache activity. Size and item counts are
// computed from the tiers on demand.
func (m *Manager) Stats(ctx context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits, misses, evictions, ratio := m.stats.snapshot()

	s := Stats{
		Hits:             hits,
		Misses:           misses,
		Evictions:        evictions,
		CompressionRatio: ratio,
		MemoryItems:      m.memory.len(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}

	usage, candidates, err := m.durableCandidatesLocked("")
	if err != nil {
		m.logger.Warn("enumerating durable tier failed", "error", err)
		return s
	}
	s.TotalSize = usage
	s.ItemCount = len(candidates)
	return s
}

// UpdateConfig merges a partial configuration into the active one. It takes
// effect on the next operation; already-cached entries are not re-validated.
func (m *Manager) UpdateConfig(patch ConfigPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if patch.MaxAge != nil {
		m.config.MaxAge = *patch.MaxAge
	}
	if patch.MaxSize != nil {
		m.config.MaxSize = *patch.MaxSize
	}
	if patch.CompressionThreshold != nil {
		m.config.CompressionThreshold = *patch.CompressionThreshold
	}
	if patch.EnableCompression != nil {
		m.config.EnableCompression = *patch.EnableCompression
	}
	if patch.EnableVersioning != nil {
		m.config.EnableVersioning = *patch.EnableVersioning
	}
	if patch.StoragePrefix != nil {
		m.config.StoragePrefix = *patch.StoragePrefix
	}
}

// makeRoomLocked enforces the byte budget ahead of a write of newSize bytes
// at key. When the write would exceed the budget it sweeps expired entries
// first and, if still over, evicts oldest-write-first until the new entry
// fits. An existing entry at the same key is about to be overwritten, so it
// counts neither toward usage nor as an eviction candidate.
func (m *Manager) makeRoomLocked(ctx context.Context, key string, newSize int64) error {
	usage, candidates, err := m.durableCandidatesLocked(key)
	if err != nil {
		return err
	}

	if usage+newSize <= m.config.MaxSize {
		return nil
	}

	if _, err := m.cleanupExpiredLocked(ctx); err != nil {
		return err
	}

	usage, candidates, err = m.durableCandidatesLocked(key)
	if err != nil {
		return err
	}

	need := usage + newSize - m.config.MaxSize
	if need <= 0 {
		return nil
	}

	victims := PlanEviction(need, candidates)
	for _, v := range victims {
		_ = m.adapter.Remove(v)
		m.memory.delete(v)
	}
	m.stats.recordEvictions(len(victims))
	telemetry.RecordEvictions(ctx, len(victims))
	m.logger.Debug("evicted entries to free space",
		"needed_bytes", need,
		"evicted", len(victims),
	)
	return nil
}

func (m *Manager) keyLocked(language, version string) string {
	return bundlecache.Key(m.config.StoragePrefix, language, version, m.config.EnableVersioning)
}

// prefixedKeysLocked returns the durable keys owned by this cache.
func (m *Manager) prefixedKeysLocked() ([]string, error) {
	keys, err := m.adapter.Keys()
	if err != nil {
		return nil, err
	}

	owned := keys[:0:0]
	for _, k := range keys {
		if strings.HasPrefix(k, m.config.StoragePrefix) {
			owned = append(owned, k)
		}
	}
	return owned, nil
}

// durableCandidatesLocked enumerates (key, timestamp, size) for every owned
// durable entry except the excluded key, returning the total stored bytes.
// Records that fail to parse become zero-timestamp candidates sized by
// their stored blob, so corruption is evicted first instead of blocking
// eviction.
func (m *Manager) durableCandidatesLocked(exclude string) (int64, []Candidate, error) {
	keys, err := m.prefixedKeysLocked()
	if err != nil {
		return 0, nil, err
	}

	var total int64
	candidates := make([]Candidate, 0, len(keys))
	for _, key := range keys {
		if key == exclude {
			continue
		}

		stored, err := m.adapter.Get(key)
		if err != nil {
			continue
		}

		meta, err := m.codec.DecodeMetadata(stored)
		if err != nil {
			c := Candidate{Key: key, Timestamp: 0, Size: int64(len(stored))}
			candidates = append(candidates, c)
			total += c.Size
			continue
		}

		candidates = append(candidates, Candidate{Key: key, Timestamp: meta.Timestamp, Size: meta.Size})
		total += meta.Size
	}

	return total, candidates, nil
}
