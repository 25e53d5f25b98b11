package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/almanac/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// settleDelay is how long the watcher waits after a rename or a new
// directory before rescanning the vault.
const settleDelay = 200 * time.Millisecond

// EventCallback is told about every index change the watcher makes.
type EventCallback func(kind string, path string)

// Watch mirrors edits made to the vault by other programs (the note editor,
// a sync client) into the index until ctx is cancelled.
//
// fsnotify reports a rename only on the old path, so a rename drops the old
// row and schedules a rescan that picks the note up under its new name.
func Watch(ctx context.Context, db NoteIndex, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := watchTree(fw, vaultRoot); err != nil {
		return err
	}

	l := &watchLoop{
		fw:     fw,
		db:     db,
		store:  store,
		root:   vaultRoot,
		logger: logger,
		cb:     cb,
	}
	logger.Info("vault watcher running", slog.String("root", vaultRoot))
	err = l.run(ctx)
	logger.Info("vault watcher stopped")
	return err
}

type watchLoop struct {
	fw     *fsnotify.Watcher
	db     NoteIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	rescan *time.Timer
}

func (l *watchLoop) run(ctx context.Context) error {
	defer func() {
		if l.rescan != nil {
			l.rescan.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.rescanC():
			l.rescan = nil
			reconcile(l.db, l.store, l.logger, l.emit)
		case ev, ok := <-l.fw.Events:
			if !ok {
				return nil
			}
			l.handle(ev)
		case err, ok := <-l.fw.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("vault watcher error", slog.String("error", err.Error()))
		}
	}
}

// rescanC is nil while no rescan is pending, which blocks its select case.
func (l *watchLoop) rescanC() <-chan time.Time {
	if l.rescan == nil {
		return nil
	}
	return l.rescan.C
}

func (l *watchLoop) scheduleRescan() {
	if l.rescan == nil {
		l.rescan = time.NewTimer(settleDelay)
		return
	}
	l.rescan.Reset(settleDelay)
}

func (l *watchLoop) emit(kind, rel string) {
	if l.cb != nil {
		l.cb(kind, rel)
	}
}

func (l *watchLoop) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) && isDir(ev.Name) {
		if err := watchTree(l.fw, ev.Name); err != nil {
			l.logger.Warn("watch new folder", slog.String("path", ev.Name), slog.String("error", err.Error()))
		}
		// Notes may be written before the folder watch is in place.
		l.scheduleRescan()
		return
	}
	if filepath.Ext(ev.Name) != ".md" {
		return
	}
	rel, err := filepath.Rel(l.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		kind := ChangeUpdated
		if ev.Has(fsnotify.Create) {
			kind = ChangeCreated
		}
		l.reindex(rel, kind)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		l.forget(rel)
		if ev.Has(fsnotify.Rename) {
			l.scheduleRescan()
		}
	}
}

func (l *watchLoop) reindex(rel, kind string) {
	data, err := l.store.Read(rel)
	if err != nil {
		l.logger.Warn("read changed note", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := IndexFile(l.db, rel, data); err != nil {
		l.logger.Warn("index changed note", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	l.logger.Debug("note indexed", slog.String("path", rel), slog.String("kind", kind))
	l.emit(kind, rel)
}

func (l *watchLoop) forget(rel string) {
	if err := l.db.DeleteNote(rel); err != nil {
		l.logger.Warn("drop note from index", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	l.logger.Debug("note dropped", slog.String("path", rel))
	l.emit(ChangeDeleted, rel)
}

// watchTree adds root and every folder below it, skipping dot folders such
// as .obsidian and .trash.
func watchTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
