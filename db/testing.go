package db

import (
	"context"
	"testing"
)

// SetupTestSqlite opens an in-memory store with the schema in place.
func SetupTestSqlite(t testing.TB) *Sqlite {
	t.Helper()
	store, err := OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := store.Setup(context.Background()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return store
}
