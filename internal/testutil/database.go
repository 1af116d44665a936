package testutil

import (
	"testing"

	"abx-go/internal/abx"
	"abx-go/internal/database"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) abx.Store {
	t.Helper()
	return NewTestStoreWith(t, nil, nil)
}

// NewTestStoreWith is NewTestStore with injectable clock and ID generator.
func NewTestStoreWith(t *testing.T, clock abx.Clock, idgen abx.IDGenerator) abx.Store {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:", clock, idgen)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := store.MigrateUp(); err != nil {
		store.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
