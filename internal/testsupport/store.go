package testsupport

import (
	"context"
	"testing"

	"vpo/internal/config"
	"vpo/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// EnqueueJob inserts a queued apply job for tests using the provided store.
func EnqueueJob(t testing.TB, st *store.Store, filePath, policyName, batchID string) *store.Job {
	t.Helper()

	job, err := st.Enqueue(context.Background(), store.JobApply, filePath, policyName, batchID)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
