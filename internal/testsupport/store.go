package testsupport

import (
	"testing"

	"tidy/internal/config"
	"tidy/internal/store"
)

// MustOpenStore opens a store against the test config's database path and
// closes it when the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
