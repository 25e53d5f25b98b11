// Package index provides the SQLite-backed vault index: note paths, titles,
// tags and links for link resolution, plus small persisted sync state.
package index

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	// 1: notes by path, looked up by link name.
	`CREATE TABLE notes (
		path       TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		checksum   TEXT NOT NULL DEFAULT '',
		tags       TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX idx_notes_name ON notes(name);`,

	// 2: outgoing wikilinks, for backlinks.
	`CREATE TABLE links (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		UNIQUE(source, target)
	);
	CREATE INDEX idx_links_source ON links(source);
	CREATE INDEX idx_links_target ON links(target);`,

	// 3: daily-record sync checkpoints, one per server and token.
	`CREATE TABLE checkpoints (
		namespace  TEXT PRIMARY KEY,
		last_time  INTEGER NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// DB is the vault index database.
type DB struct {
	conn *sql.DB
}

// Open opens the index at path, creating it if needed, and migrates it to
// the current schema.
func Open(path string) (*DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	conn, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	var version int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("index: schema version %d is newer than this build (%d)", version, len(migrations))
	}
	for i := version; i < len(migrations); i++ {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("index: migrate: %w", err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("index: migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("index: migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("index: migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}
