// Package testutil provides shared test helpers for setting up vaults,
// caches, and indexes.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/sowilo/internal/journal"
	"github.com/starford/sowilo/internal/kvstore"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tagindex"
)

// Logger returns a discard logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCache creates a temporary SQLite key-value store that is automatically
// cleaned up.
func TestCache(t *testing.T) *kvstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sowilo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := kvstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestIndex creates an empty tag index over a temporary vault, with a
// journal store rooted at "journal" inside it.
func TestIndex(t *testing.T) (string, storage.Provider, *tagindex.Index) {
	t.Helper()
	vaultDir, store := TestVault(t)
	logger := Logger()
	js := journal.NewStore(store, "journal", ".yaml", logger)
	idx := tagindex.New(store, js, TestCache(t), logger, tagindex.Options{})
	return vaultDir, store, idx
}

// WriteFile writes a file under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
