package testsupport

import (
	"context"
	"testing"

	"folio/internal/config"
	"folio/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustDefaultLibrary returns the default library created on open.
func MustDefaultLibrary(t testing.TB, store *library.Store) *library.Library {
	t.Helper()

	lib, err := store.DefaultLibrary(context.Background())
	if err != nil {
		t.Fatalf("store.DefaultLibrary: %v", err)
	}
	if lib == nil {
		t.Fatal("default library missing")
	}
	return lib
}

// NewCollection creates a collection for tests using the provided store.
func NewCollection(t testing.TB, store *library.Store, libraryID int64, name string) *library.Collection {
	t.Helper()

	col, err := store.CreateCollection(context.Background(), libraryID, nil, name)
	if err != nil {
		t.Fatalf("store.CreateCollection: %v", err)
	}
	return col
}
