package testsupport

import (
	"testing"

	"ytsummarize/internal/cache"
	"ytsummarize/internal/config"
	"ytsummarize/internal/logging"
)

// MustOpenCache opens a cache.Store in the config's cache directory and
// registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(cfg.Paths.CacheDir, logging.NewNop())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
