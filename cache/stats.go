package cache

import "sync"

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64

	// HitRate is hits / (hits + misses), 0 when no lookups have occurred.
	HitRate float64

	// CompressionRatio is compressedSize / originalSize as observed on the
	// most recent compressed write. It is deliberately not a cumulative
	// average; keeping the counter O(1) was chosen over accuracy and the
	// limitation is part of the contract.
	CompressionRatio float64

	// TotalSize, ItemCount and MemoryItems are computed from the tiers at
	// snapshot time rather than kept as counters, so they cannot drift.
	TotalSize   int64
	ItemCount   int
	MemoryItems int
}

// statsCollector holds the running counters behind Stats.
type statsCollector struct {
	mu               sync.Mutex
	hits             int64
	misses           int64
	evictions        int64
	compressionRatio float64
}

func (s *statsCollector) recordHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
}

func (s *statsCollector) recordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses++
}

func (s *statsCollector) recordEvictions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictions += int64(n)
}

// observeCompression overwrites the ratio with the latest observation.
func (s *statsCollector) observeCompression(compressedSize, originalSize int64) {
	if originalSize <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compressionRatio = float64(compressedSize) / float64(originalSize)
}

func (s *statsCollector) snapshot() (hits, misses, evictions int64, ratio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, s.evictions, s.compressionRatio
}
