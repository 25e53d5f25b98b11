package index

import (
	"log/slog"
	"sort"
	"time"

	"github.com/starford/almanac/internal/checksum"
	"github.com/starford/almanac/internal/markdown"
	"github.com/starford/almanac/internal/storage"
)

// drift is the difference between the vault on disk and the index.
type drift struct {
	total   int
	added   []string // on disk, not indexed
	changed []string // indexed with a stale checksum
	gone    []string // indexed, no longer on disk
}

func measureDrift(db NoteIndex, store storage.Provider) (drift, error) {
	files, err := store.List("")
	if err != nil {
		return drift{}, err
	}
	indexed, err := db.AllChecksums()
	if err != nil {
		return drift{}, err
	}

	d := drift{total: len(files)}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
		switch prev, ok := indexed[f.Path]; {
		case !ok:
			d.added = append(d.added, f.Path)
		case prev != f.Checksum:
			d.changed = append(d.changed, f.Path)
		}
	}
	for p := range indexed {
		if !seen[p] {
			d.gone = append(d.gone, p)
		}
	}
	sort.Strings(d.gone)
	return d, nil
}

// apply reindexes added and changed notes and drops vanished ones, calling
// emit for every change that made it into the index.
func (d drift) apply(db NoteIndex, store storage.Provider, logger *slog.Logger, emit EventCallback) {
	for _, p := range d.gone {
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("index: drop vanished note", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		emit(ChangeDeleted, p)
	}
	reindex := func(paths []string, kind string) {
		for _, p := range paths {
			data, err := store.Read(p)
			if err != nil {
				logger.Warn("index: read note", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			if err := IndexFile(db, p, data); err != nil {
				logger.Warn("index: parse note", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			emit(kind, p)
		}
	}
	reindex(d.added, ChangeCreated)
	reindex(d.changed, ChangeUpdated)
}

// Sync brings the index up to date with the vault. It runs once at startup,
// before the watcher takes over.
func Sync(db NoteIndex, store storage.Provider, logger *slog.Logger) error {
	d, err := measureDrift(db, store)
	if err != nil {
		return err
	}
	d.apply(db, store, logger, func(string, string) {})
	logger.Info("vault index ready",
		slog.Int("notes", d.total),
		slog.Int("added", len(d.added)),
		slog.Int("changed", len(d.changed)),
		slog.Int("removed", len(d.gone)))
	return nil
}

// reconcile is the watcher's rescan after renames and new folders.
func reconcile(db NoteIndex, store storage.Provider, logger *slog.Logger, emit EventCallback) {
	d, err := measureDrift(db, store)
	if err != nil {
		logger.Warn("vault rescan failed", slog.String("error", err.Error()))
		return
	}
	d.apply(db, store, logger, emit)
}

// IndexFile parses a note and stores its title, tags and outgoing links.
func IndexFile(db NoteIndex, path string, data []byte) error {
	res, err := markdown.Parse(data)
	if err != nil {
		return err
	}
	return db.UpsertNote(NoteRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		UpdatedAt: time.Now(),
	}, res.Links)
}
