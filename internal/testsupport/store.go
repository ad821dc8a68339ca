package testsupport

import (
	"testing"

	"scribe/internal/config"
	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/state"
)

// MustOpenStore opens the state store at cfg.Paths.StateFile.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...state.Option) *state.Store {
	t.Helper()

	store, err := state.Open(cfg.Paths.StateFile, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return store
}

// MustOpenHistory opens the run ledger and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
