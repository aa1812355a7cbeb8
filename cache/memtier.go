// Package cache implements the two-tier translation bundle cache manager.
package cache

import (
	"sync"

	bundlecache "github.com/localehub/bundle-cache"
)

// memoryTier is the process-local map of decompressed entries. It carries
// no eviction policy of its own; the manager removes memory entries in
// lockstep with durable-tier removal so a durable eviction can never leave
// stale data servable from memory.
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]*bundlecache.Entry
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: make(map[string]*bundlecache.Entry)}
}

func (t *memoryTier) get(key string) (*bundlecache.Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[key]
	return e, ok
}

func (t *memoryTier) set(key string, e *bundlecache.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[key] = e
}

func (t *memoryTier) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key)
}

func (t *memoryTier) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*bundlecache.Entry)
}

func (t *memoryTier) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}
