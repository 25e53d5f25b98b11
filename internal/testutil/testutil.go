// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/storage"
	"github.com/starford/almanac/internal/vault"
)

// Logger returns a logger that discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "almanac-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Env is a temporary vault directory with its storage, index and Vault.
type Env struct {
	Root  string
	Store *storage.FS
	DB    *index.DB
	Vault *vault.Vault
}

// TestVault creates a temporary vault backed by a fresh index.
func TestVault(t *testing.T) *Env {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db := TestDB(t)
	return &Env{
		Root:  root,
		Store: store,
		DB:    db,
		Vault: vault.New(store, db, Logger()),
	}
}

// Write stores a note through the vault so it is indexed, failing the test on error.
func (e *Env) Write(t *testing.T, path, content string) {
	t.Helper()
	if err := e.Vault.WriteText(path, content); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Read returns a note's content, failing the test on error.
func (e *Env) Read(t *testing.T, path string) string {
	t.Helper()
	content, _, err := e.Vault.ReadText(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return content
}
