package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/localehub/bundle-cache/telemetry"
)

// FetchResult is what a FetchFunc produces for one language.
type FetchResult struct {
	Data     map[string]string
	Version  string
	Coverage float64
}

// FetchFunc fetches a bundle for a language, typically from the network.
// The cache owns no retry or backoff policy; that is the caller's job.
type FetchFunc func(ctx context.Context, language string) (*FetchResult, error)

// PreloadResult reports how a preload run settled.
type PreloadResult struct {
	// Loaded lists languages fetched and cached during this run.
	Loaded []string

	// Skipped lists languages that already had a valid cached entry.
	Skipped []string

	// Failed maps each language whose fetch or write failed to its error.
	Failed map[string]error
}

// Preload warms the cache for the given languages. Languages with a valid
// cached entry are skipped; the rest are fetched concurrently, deduplicated
// per language across overlapping runs, and written through Set on success.
//
// Individual failures are logged and reported in the result; Preload itself
// never returns an error and settles only once every attempt has settled.
// There is no ordering guarantee between languages and no cancellation of a
// fetch once launched.
func (m *Manager) Preload(ctx context.Context, languages []string, fetch FetchFunc) *PreloadResult {
	runID := uuid.NewString()
	result := &PreloadResult{Failed: make(map[string]error)}

	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)

	for _, language := range languages {
		if m.hasValid(language) {
			result.Skipped = append(result.Skipped, language)
			continue
		}

		wg.Add(1)
		go func(language string) {
			defer wg.Done()

			start := time.Now()
			v, err, _ := m.sf.Do(language, func() (any, error) {
				return fetch(ctx, language)
			})
			telemetry.RecordPreloadFetch(ctx, err == nil, time.Since(start))

			if err == nil {
				fr, _ := v.(*FetchResult)
				if fr == nil || fr.Data == nil {
					err = errors.New("fetch returned no data")
				} else {
					err = m.Set(ctx, language, fr.Data, SetOptions{Version: fr.Version, Coverage: fr.Coverage})
				}
			}

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				m.logger.Warn("preload failed for language",
					"run_id", runID,
					"language", language,
					"error", err,
				)
				result.Failed[language] = err
				return
			}
			result.Loaded = append(result.Loaded, language)
		}(language)
	}

	wg.Wait()

	m.logger.Info("preload complete",
		"run_id", runID,
		"loaded", len(result.Loaded),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result
}

// hasValid reports whether a fresh entry exists for the language's
// unversioned key, without recording a hit or miss.
func (m *Manager) hasValid(language string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.keyLocked(language, "")
	now := m.now()

	if e, ok := m.memory.get(key); ok {
		return !e.Metadata.IsStale(now, m.config.MaxAge)
	}

	stored, err := m.adapter.Get(key)
	if err != nil {
		return false
	}
	meta, err := m.codec.DecodeMetadata(stored)
	if err != nil {
		return false
	}
	return !meta.IsStale(now, m.config.MaxAge)
}
