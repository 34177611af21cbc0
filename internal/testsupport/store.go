package testsupport

import (
	"context"
	"testing"

	"hcpextract/internal/config"
	"hcpextract/internal/status"
)

// MustOpenStore opens a status.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *status.Store {
	t.Helper()

	store, err := status.Open(context.Background(), cfg.StorePath())
	if err != nil {
		t.Fatalf("status.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustUpsert commits paths directly, bypassing the status writer.
func MustUpsert(t testing.TB, store *status.Store, paths ...string) status.BatchResult {
	t.Helper()

	res, err := store.UpsertBatch(context.Background(), paths)
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	return res
}
