package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/almanac/internal/storage"
)

type watched struct {
	root string
	db   *DB

	mu      sync.Mutex
	changes []string
}

// startWatcher runs Watch over an empty vault until the test ends.
// seed files are written and synced before the watcher starts.
func startWatcher(t *testing.T, seed map[string]string) *watched {
	t.Helper()
	root := t.TempDir()
	for rel, body := range seed {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Open(filepath.Join(t.TempDir(), "watch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	w := &watched{root: root, db: db}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, db, store, root, logger, func(kind, p string) {
			w.mu.Lock()
			w.changes = append(w.changes, kind+" "+p)
			w.mu.Unlock()
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// fsnotify needs a moment before the first watch is live.
	time.Sleep(100 * time.Millisecond)
	return w
}

func (w *watched) write(t *testing.T, rel, body string) {
	t.Helper()
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (w *watched) saw(change string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.changes {
		if c == change {
			return true
		}
	}
	return false
}

func (w *watched) located(name string) string {
	p, ok, _ := w.db.Locate(name, "")
	if !ok {
		return ""
	}
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("timed out waiting for %s", what)
}

func TestWatch_DailyNoteCreatedByEditor(t *testing.T) {
	w := startWatcher(t, nil)

	w.write(t, "2024-03-15.md", "# 2024-03-15\n\n- [ ] call the plumber\n")

	waitFor(t, "2024-03-15 to be locatable", func() bool {
		return w.located("2024-03-15") == "2024-03-15.md"
	})
	waitFor(t, "created callback", func() bool {
		return w.saw("created 2024-03-15.md")
	})
}

func TestWatch_EditUpdatesLinks(t *testing.T) {
	w := startWatcher(t, map[string]string{"2024-W11.md": "# Week 11\n"})

	w.write(t, "2024-W11.md", "# Week 11\n\nsee [[2024-03-15]]\n")

	waitFor(t, "week note to backlink the day", func() bool {
		got, _ := w.db.Backlinks("2024-03-15")
		return len(got) == 1 && got[0] == "2024-W11.md"
	})
}

func TestWatch_NewYearFolder(t *testing.T) {
	w := startWatcher(t, nil)

	dir := filepath.Join(w.root, "PeriodicNotes", "2025", "Daily", "01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	w.write(t, "PeriodicNotes/2025/Daily/01/2025-01-01.md", "# 2025-01-01\n")

	waitFor(t, "note in a fresh year folder", func() bool {
		return w.located("2025-01-01") == "PeriodicNotes/2025/Daily/01/2025-01-01.md"
	})
}

func TestWatch_DeletedNoteDropped(t *testing.T) {
	w := startWatcher(t, map[string]string{"2024-Q1.md": "# Q1\n"})
	if w.located("2024-Q1") == "" {
		t.Fatal("seeded note not indexed")
	}

	if err := os.Remove(filepath.Join(w.root, "2024-Q1.md")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "quarter note to leave the index", func() bool {
		return w.located("2024-Q1") == ""
	})
	waitFor(t, "deleted callback", func() bool {
		return w.saw("deleted 2024-Q1.md")
	})
}

func TestWatch_MovedIntoArchive(t *testing.T) {
	w := startWatcher(t, map[string]string{
		"1. Projects/Garden/Garden.md": "# Garden\n",
		"4. Archives/Archives.md":      "# Archives\n",
	})

	err := os.Rename(
		filepath.Join(w.root, "1. Projects", "Garden", "Garden.md"),
		filepath.Join(w.root, "4. Archives", "Garden.md"),
	)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "moved note at its new path", func() bool {
		return w.located("Garden") == "4. Archives/Garden.md"
	})
}
