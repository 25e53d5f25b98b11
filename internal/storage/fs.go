package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/checksum"
	"github.com/starford/almanac/internal/models"
)

// Temporary files created during atomic writes. The leading dot keeps them
// out of List and out of the watcher.
const tmpPattern = ".almanac-tmp-*"

// ErrOutsideVault is returned for paths that resolve outside the vault root.
var ErrOutsideVault = fmt.Errorf("path outside vault: %w", apperr.ErrInvalidInput)

// FS is a Provider over a directory on the local disk.
type FS struct {
	root string
}

// NewFS opens an existing vault directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: vault root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, fmt.Errorf("storage: vault root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: vault root %s is a file", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

func fail(op, rel string, err error) error {
	return fmt.Errorf("storage: %s %s: %w", op, rel, err)
}

// abs maps a vault-relative slash path onto the disk. The empty path is the
// vault root.
func (f *FS) abs(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if filepath.IsAbs(local) {
		return "", fail("resolve", rel, ErrOutsideVault)
	}
	p := filepath.Join(f.root, local)
	if p != f.root && !strings.HasPrefix(p, f.root+string(filepath.Separator)) {
		return "", fail("resolve", rel, ErrOutsideVault)
	}
	return p, nil
}

func (f *FS) rel(abs string) string {
	r, _ := filepath.Rel(f.root, abs)
	return filepath.ToSlash(r)
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") }

// List returns every note below dir ordered by path. Dot folders such as
// .obsidian and .trash are skipped; a missing dir is empty.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	var notes []models.NoteMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == base && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if p != base && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != ".md" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		notes = append(notes, models.NoteMetadata{
			Path:      f.rel(p),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fail("list", dir, err)
	}
	slices.SortFunc(notes, func(a, b models.NoteMetadata) int { return strings.Compare(a.Path, b.Path) })
	return notes, nil
}

// ListDirs returns the visible sub-folders of dir by name.
func (f *FS) ListDirs(dir string) ([]string, error) {
	base, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("list dirs", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (f *FS) Read(path string) ([]byte, error) {
	p, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fail("read", path, err)
	}
	return data, nil
}

// Write replaces path in one step so the note editor never sees a partial
// note.
func (f *FS) Write(path string, content []byte) error {
	p, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := writeAtomic(p, content); err != nil {
		return fail("write", path, err)
	}
	return nil
}

func writeAtomic(dst string, content []byte) (err error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (f *FS) Exists(path string) bool {
	p, err := f.abs(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

func (f *FS) MkdirAll(dir string) error {
	p, err := f.abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fail("mkdir", dir, err)
	}
	return nil
}

func (f *FS) Delete(path string) error {
	p, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fail("delete", path, err)
	}
	return nil
}

// Move renames a note or a whole folder. An existing destination is never
// replaced; the error wraps fs.ErrExist.
func (f *FS) Move(oldPath, newPath string) error {
	from, err := f.abs(oldPath)
	if err != nil {
		return err
	}
	to, err := f.abs(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(to); err == nil {
		return fail("move", oldPath+" -> "+newPath, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fail("move", newPath, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fail("move", oldPath, err)
	}
	return nil
}
