package testsupport

import (
	"context"
	"testing"

	"organ/internal/config"
	"organ/internal/media"
	"organ/internal/recognizer"
	"organ/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewJob enqueues a local video file job for tests using the provided store.
func NewJob(t testing.TB, st *store.Store, name, path string, size int64) *store.Job {
	t.Helper()

	file := media.FileInfo{
		Name:    name,
		Path:    path,
		Size:    size,
		Backend: media.BackendLocal,
	}
	job, err := st.NewJob(context.Background(), file, recognizer.Fingerprint(name, size))
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
