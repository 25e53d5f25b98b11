package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCheckpoint returns the stored last-sync time for namespace. ok is false
// when nothing has been stored yet.
func (db *DB) GetCheckpoint(namespace string) (t time.Time, ok bool, err error) {
	var unix int64
	err = db.conn.QueryRow(`SELECT last_time FROM checkpoints WHERE namespace = ?`, namespace).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("index: get checkpoint: %w", err)
	}
	return time.Unix(unix, 0), true, nil
}

// SetCheckpoint stores t (second precision) as the last-sync time for namespace.
func (db *DB) SetCheckpoint(namespace string, t time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO checkpoints (namespace, last_time, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			last_time  = excluded.last_time,
			updated_at = excluded.updated_at
	`, namespace, t.Unix(), time.Now())
	if err != nil {
		return fmt.Errorf("index: set checkpoint: %w", err)
	}
	return nil
}

// ResetCheckpoint forgets the last-sync time for namespace.
func (db *DB) ResetCheckpoint(namespace string) error {
	if _, err := db.conn.Exec(`DELETE FROM checkpoints WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("index: reset checkpoint: %w", err)
	}
	return nil
}
