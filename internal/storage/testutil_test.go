package storage

import (
	"path/filepath"
	"testing"
	"time"
)

// fixedTime returns a deterministic timestamp for tests that don't
// care about wall-clock time but need a stable, comparable value.
func fixedTime() time.Time {
	return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
}

// newTestStorage opens a private in-memory database, the common case
// for tests that never need a second goroutine to touch it.
func newTestStorage(t *testing.T, opts ...Option) *Storage {
	t.Helper()
	s, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestFileStorage opens a temp-file-backed database, needed by
// tests that exercise cross-goroutine scoped acquisition: a private
// (":memory:") database rejects Acquire from any goroutine but the
// creator, by design.
func newTestFileStorage(t *testing.T, opts ...Option) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
