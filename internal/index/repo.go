package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/almanac/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// noteName is the link name of a note: its base name without extension.
func noteName(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}

// UpsertNote inserts or replaces a note and its outgoing links within a transaction.
func (db *DB) UpsertNote(n NoteRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, name, title, checksum, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			updated_at = excluded.updated_at
	`, n.Path, noteName(n.Path), n.Title, n.Checksum, string(tagsJSON), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(p string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, p)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, p)

	return tx.Commit()
}

// DeletePrefix removes every note stored under the folder prefix.
func (db *DB) DeletePrefix(folder string) error {
	like := escapeLike(strings.TrimSuffix(folder, "/")) + "/%"
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source LIKE ? ESCAPE '\'`, like); err != nil {
		return fmt.Errorf("index: delete prefix links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path LIKE ? ESCAPE '\'`, like); err != nil {
		return fmt.Errorf("index: delete prefix notes: %w", err)
	}
	return tx.Commit()
}

// GetNote returns the indexed row for a path.
func (db *DB) GetNote(p string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT path, title, checksum, tags, updated_at FROM notes WHERE path = ?`, p)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// AllChecksums returns the stored checksum of every indexed note keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Locate resolves a wikilink-style reference to a note path, the way a link
// like [[2024-03-15]] or [[Daily/2024-03-15]] is resolved: the link must match
// the end of the path. folder, when non-empty, limits the search to that
// folder. The shortest matching path wins.
func (db *DB) Locate(link, folder string) (string, bool, error) {
	link = strings.TrimSuffix(strings.Trim(link, "/"), ".md")
	if link == "" {
		return "", false, nil
	}
	folder = strings.Trim(folder, "/")

	query := `SELECT path FROM notes WHERE name = ? AND (path = ? OR path LIKE ? ESCAPE '\')`
	args := []any{noteName(link), link + ".md", "%/" + escapeLike(link) + ".md"}
	if folder != "" {
		query += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(folder)+"/%")
	}
	query += ` ORDER BY length(path), path LIMIT 1`

	var p string
	err := db.conn.QueryRow(query, args...).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: locate %s: %w", link, err)
	}
	return p, true, nil
}

// ListNotes returns the notes under folder ("" for the whole vault) ordered by path.
func (db *DB) ListNotes(folder string) ([]NoteRow, error) {
	query := `SELECT path, title, checksum, tags, updated_at FROM notes`
	var args []any
	if folder = strings.Trim(folder, "/"); folder != "" {
		query += ` WHERE path LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(folder)+"/%")
	}
	query += ` ORDER BY path`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Backlinks returns all note paths that link to the given target name.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n    NoteRow
		tags string
	)
	if err := s.Scan(&n.Path, &n.Title, &n.Checksum, &tags, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
