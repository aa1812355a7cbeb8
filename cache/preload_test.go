package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreloadPartialFailure(t *testing.T) {
	mgr, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	errRejected := errors.New("upstream rejected request")
	fetch := func(ctx context.Context, language string) (*FetchResult, error) {
		if language == "de" {
			return nil, errRejected
		}
		return &FetchResult{
			Data:     map[string]string{"greeting": "hello " + language},
			Coverage: 1,
		}, nil
	}

	result := mgr.Preload(ctx, []string{"en", "de"}, fetch)

	require.Equal(t, []string{"en"}, result.Loaded)
	require.Empty(t, result.Skipped)
	require.Len(t, result.Failed, 1)
	require.ErrorIs(t, result.Failed["de"], errRejected)

	entry, ok := mgr.Get(ctx, "en", "")
	require.True(t, ok)
	require.Equal(t, "hello en", entry.Data["greeting"])

	_, ok = mgr.Get(ctx, "de", "")
	require.False(t, ok)
}

func TestPreloadSkipsAlreadyCached(t *testing.T) {
	mgr, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "en", map[string]string{"a": "b"}, SetOptions{}))

	fetch := func(ctx context.Context, language string) (*FetchResult, error) {
		t.Fatalf("fetch must not run for cached language %q", language)
		return nil, nil
	}

	result := mgr.Preload(ctx, []string{"en"}, fetch)
	require.Equal(t, []string{"en"}, result.Skipped)
	require.Empty(t, result.Loaded)
	require.Empty(t, result.Failed)
}

func TestPreloadNilFetchResult(t *testing.T) {
	mgr, _ := newTestManager(t, testConfig())

	fetch := func(ctx context.Context, language string) (*FetchResult, error) {
		return nil, nil
	}

	result := mgr.Preload(context.Background(), []string{"fr"}, fetch)
	require.Len(t, result.Failed, 1)
	require.Error(t, result.Failed["fr"])
}

func TestPreloadManyLanguagesSettle(t *testing.T) {
	mgr, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	languages := []string{"en", "de", "fr", "it", "ja", "ko", "nl", "pt", "sv", "zh"}

	var calls atomic.Int64
	fetch := func(ctx context.Context, language string) (*FetchResult, error) {
		calls.Add(1)
		return &FetchResult{Data: map[string]string{"lang": language}}, nil
	}

	result := mgr.Preload(ctx, languages, fetch)

	require.Len(t, result.Loaded, len(languages))
	require.Empty(t, result.Failed)
	require.Equal(t, int64(len(languages)), calls.Load())

	for _, lang := range languages {
		entry, ok := mgr.Get(ctx, lang, "")
		require.True(t, ok)
		require.Equal(t, lang, entry.Data["lang"])
	}
}
