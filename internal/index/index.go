package index

import "time"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteIndex interface {
	UpsertNote(n NoteRow, links []string) error
	DeleteNote(path string) error
	DeletePrefix(folder string) error
	GetNote(path string) (*NoteRow, error)
	AllChecksums() (map[string]string, error)
	Locate(link, folder string) (string, bool, error)
	ListNotes(folder string) ([]NoteRow, error)
	Backlinks(target string) ([]string, error)
	Close() error
}

// CheckpointStore persists last-sync times per namespace.
type CheckpointStore interface {
	GetCheckpoint(namespace string) (time.Time, bool, error)
	SetCheckpoint(namespace string, t time.Time) error
	ResetCheckpoint(namespace string) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ NoteIndex       = (*DB)(nil)
	_ CheckpointStore = (*DB)(nil)
)
