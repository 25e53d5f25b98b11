package index

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/almanac/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "almanac-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func upsert(t *testing.T, db *DB, path string, links ...string) {
	t.Helper()
	if err := db.UpsertNote(NoteRow{Path: path, Checksum: "cs-" + path, UpdatedAt: time.Now()}, links); err != nil {
		t.Fatalf("UpsertNote(%s): %v", path, err)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "links", "checkpoints"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetNote(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "1. Projects/Garden/Garden.md",
		Title:     "Garden",
		Checksum:  "abc123",
		Tags:      []string{"project"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, []string{"Health"}); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	got, err := db.GetNote(row.Path)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Checksum != "abc123" || got.Title != "Garden" {
		t.Errorf("row = %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "project" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetNote("missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertReplacesLinks(t *testing.T) {
	db := testDB(t)
	upsert(t, db, "up.md", "x")
	upsert(t, db, "up.md", "y")

	if bl, _ := db.Backlinks("x"); len(bl) != 0 {
		t.Error("old link should be removed on upsert")
	}
	if bl, _ := db.Backlinks("y"); len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	upsert(t, db, "del.md", "target")
	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	checksums, _ := db.AllChecksums()
	if _, ok := checksums["del.md"]; ok {
		t.Error("deleted note still indexed")
	}
	if bl, _ := db.Backlinks("target"); len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestDeletePrefix(t *testing.T) {
	db := testDB(t)
	upsert(t, db, "1. Projects/Garden/Garden.md")
	upsert(t, db, "1. Projects/Garden/plan.md")
	upsert(t, db, "1. Projects/Gardening/Gardening.md")

	if err := db.DeletePrefix("1. Projects/Garden"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	checksums, _ := db.AllChecksums()
	if len(checksums) != 1 {
		t.Fatalf("remaining = %v", checksums)
	}
	if _, ok := checksums["1. Projects/Gardening/Gardening.md"]; !ok {
		t.Error("sibling folder with shared prefix must survive")
	}
}

func TestLocate(t *testing.T) {
	db := testDB(t)
	upsert(t, db, "PeriodicNotes/2024/Daily/03/2024-03-15.md")
	upsert(t, db, "Archive/old/2024-03-15.md")
	upsert(t, db, "2024-03-15.md")
	upsert(t, db, "PeriodicNotes/2024/Weekly/2024-W11.md")

	p, ok, err := db.Locate("2024-03-15", "PeriodicNotes")
	if err != nil || !ok {
		t.Fatalf("Locate: ok=%v err=%v", ok, err)
	}
	if p != "PeriodicNotes/2024/Daily/03/2024-03-15.md" {
		t.Errorf("path = %q", p)
	}

	// Without a folder the shortest path wins.
	p, _, _ = db.Locate("2024-03-15", "")
	if p != "2024-03-15.md" {
		t.Errorf("unscoped path = %q", p)
	}

	// Partial path links must match the path suffix.
	p, ok, _ = db.Locate("old/2024-03-15.md", "")
	if !ok || p != "Archive/old/2024-03-15.md" {
		t.Errorf("suffix link path = %q ok=%v", p, ok)
	}

	if _, ok, _ := db.Locate("2024-W12", "PeriodicNotes"); ok {
		t.Error("expected no match for missing note")
	}
}

func TestLocate_LikeMetacharacters(t *testing.T) {
	db := testDB(t)
	upsert(t, db, "a_b/note.md")
	upsert(t, db, "axb/note.md")

	p, ok, _ := db.Locate("note", "a_b")
	if !ok || p != "a_b/note.md" {
		t.Errorf("path = %q ok=%v", p, ok)
	}
	if _, ok, _ := db.Locate("note", "a%"); ok {
		t.Error("'%' in folder must be literal")
	}
}

func TestListNotes(t *testing.T) {
	db := testDB(t)
	upsert(t, db, "2. Areas/Health/Health.md")
	upsert(t, db, "2. Areas/Finance/Finance.md")
	upsert(t, db, "3. Resources/Go/Go.md")

	rows, err := db.ListNotes("2. Areas")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(rows) != 2 || rows[0].Path != "2. Areas/Finance/Finance.md" {
		t.Errorf("rows = %+v", rows)
	}
	all, _ := db.ListNotes("")
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

func TestCheckpoints(t *testing.T) {
	db := testDB(t)
	if _, ok, err := db.GetCheckpoint("daily-record:abc"); ok || err != nil {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	ts := time.Unix(1700000000, 0)
	if err := db.SetCheckpoint("daily-record:abc", ts); err != nil {
		t.Fatalf("SetCheckpoint: %v", err)
	}
	if err := db.SetCheckpoint("daily-record:abc", ts.Add(time.Hour)); err != nil {
		t.Fatalf("SetCheckpoint overwrite: %v", err)
	}
	got, ok, err := db.GetCheckpoint("daily-record:abc")
	if err != nil || !ok {
		t.Fatalf("GetCheckpoint: ok=%v err=%v", ok, err)
	}
	if !got.Equal(ts.Add(time.Hour)) {
		t.Errorf("checkpoint = %v", got)
	}
	if _, ok, _ := db.GetCheckpoint("daily-record:other"); ok {
		t.Error("namespaces must be independent")
	}

	if err := db.ResetCheckpoint("daily-record:abc"); err != nil {
		t.Fatalf("ResetCheckpoint: %v", err)
	}
	if _, ok, _ := db.GetCheckpoint("daily-record:abc"); ok {
		t.Error("checkpoint should be gone after reset")
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	upsert(t, db, "2024-03-15.md", "2024-W11")
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var version int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("user_version = %d, want %d", version, len(migrations))
	}
	if _, err := db.GetNote("2024-03-15.md"); err != nil {
		t.Errorf("note lost on reopen: %v", err)
	}
}
