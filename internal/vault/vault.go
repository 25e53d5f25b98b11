// Package vault is the file collaborator used by the periodic, PARA and
// daily-record components: storage access plus index-backed link resolution,
// with the index kept current on every write made through it.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/checksum"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/storage"
)

// Vault coordinates storage and index operations.
type Vault struct {
	store  storage.Provider
	db     index.NoteIndex
	logger *slog.Logger
}

// New creates a Vault over store and db.
func New(store storage.Provider, db index.NoteIndex, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{store: store, db: db, logger: logger}
}

// Locate resolves a link (a note name or path suffix, with or without .md)
// within folder. ok is false when no note matches.
func (v *Vault) Locate(link, folder string) (string, bool, error) {
	return v.db.Locate(link, folder)
}

// Exists reports whether a file or folder exists at path.
func (v *Vault) Exists(path string) bool {
	return v.store.Exists(path)
}

// ReadText returns the content of a note and its checksum, for use with
// CompareAndWrite.
func (v *Vault) ReadText(path string) (content, sum string, err error) {
	data, err := v.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("vault: %s: %w", path, apperr.ErrNotFound)
		}
		return "", "", err
	}
	return string(data), checksum.Sum(data), nil
}

// WriteText overwrites a note and re-indexes it.
func (v *Vault) WriteText(path, content string) error {
	data := []byte(content)
	if err := v.store.Write(path, data); err != nil {
		return err
	}
	v.reindex(path, data)
	return nil
}

// CompareAndWrite writes content only if the note still has checksum
// expected. It returns apperr.ErrConflict when the note changed since it was
// read. The check and the write are not atomic with respect to other
// processes; it narrows the lost-update window to the write itself.
func (v *Vault) CompareAndWrite(path, expected, content string) error {
	_, current, err := v.ReadText(path)
	if err != nil {
		return err
	}
	if current != expected {
		return fmt.Errorf("vault: %s changed since read: %w", path, apperr.ErrConflict)
	}
	return v.WriteText(path, content)
}

// Create writes a new note. It fails with apperr.ErrAlreadyExists when the
// path is taken.
func (v *Vault) Create(path, content string) error {
	if v.store.Exists(path) {
		return fmt.Errorf("vault: %s: %w", path, apperr.ErrAlreadyExists)
	}
	return v.WriteText(path, content)
}

// WriteBinary stores a non-note file such as an attachment. It is not indexed.
func (v *Vault) WriteBinary(path string, data []byte) error {
	return v.store.Write(path, data)
}

// EnsureFolder creates folder if it does not exist.
func (v *Vault) EnsureFolder(folder string) error {
	if v.store.Exists(folder) {
		return nil
	}
	return v.store.MkdirAll(folder)
}

// Move renames a note or folder and updates the index for everything that moved.
func (v *Vault) Move(oldPath, newPath string) error {
	if !v.store.Exists(oldPath) {
		return fmt.Errorf("vault: %s: %w", oldPath, apperr.ErrNotFound)
	}
	if err := v.store.Move(oldPath, newPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("vault: %s: %w", newPath, apperr.ErrAlreadyExists)
		}
		return err
	}

	if strings.HasSuffix(oldPath, ".md") {
		_ = v.db.DeleteNote(oldPath)
		if data, err := v.store.Read(newPath); err == nil {
			v.reindex(newPath, data)
		}
		return nil
	}

	if err := v.db.DeletePrefix(oldPath); err != nil {
		v.logger.Warn("vault: drop moved folder from index failed",
			slog.String("path", oldPath), slog.String("error", err.Error()))
	}
	metas, err := v.store.List(newPath)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if data, err := v.store.Read(m.Path); err == nil {
			v.reindex(m.Path, data)
		}
	}
	return nil
}

// List returns metadata for the notes under dir.
func (v *Vault) List(dir string) ([]models.NoteMetadata, error) {
	return v.store.List(dir)
}

// ListDirs returns the sub-folder names of dir.
func (v *Vault) ListDirs(dir string) ([]string, error) {
	return v.store.ListDirs(dir)
}

// Backlinks returns the notes linking to the note named by p.
func (v *Vault) Backlinks(p string) ([]string, error) {
	return v.db.Backlinks(strings.TrimSuffix(path.Base(p), ".md"))
}

// Note returns the indexed metadata of a note.
func (v *Vault) Note(path string) (*index.NoteRow, error) {
	return v.db.GetNote(path)
}

// reindex is best-effort: the watcher and the startup sync repair misses.
func (v *Vault) reindex(path string, data []byte) {
	if !strings.HasSuffix(path, ".md") {
		return
	}
	if err := index.IndexFile(v.db, path, data); err != nil {
		v.logger.Warn("vault: index failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
