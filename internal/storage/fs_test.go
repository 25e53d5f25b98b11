package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/almanac/internal/apperr"
)

func newVault(t *testing.T, files map[string]string) *FS {
	t.Helper()
	v, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	for p, body := range files {
		if err := v.Write(p, []byte(body)); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}
	return v
}

func readString(t *testing.T, v *FS, p string) string {
	t.Helper()
	b, err := v.Read(p)
	if err != nil {
		t.Fatalf("Read %s: %v", p, err)
	}
	return string(b)
}

func TestFS_DailyNoteRoundTrip(t *testing.T) {
	const p = "PeriodicNotes/2024/Daily/03/2024-03-15.md"
	v := newVault(t, map[string]string{p: "# 2024-03-15\n\n## Daily Record\n"})

	if got := readString(t, v, p); got != "# 2024-03-15\n\n## Daily Record\n" {
		t.Errorf("content = %q", got)
	}
	if !v.Exists("PeriodicNotes/2024/Daily/03") {
		t.Error("month folder not created")
	}

	if err := v.Write(p, []byte("rewritten")); err != nil {
		t.Fatal(err)
	}
	if got := readString(t, v, p); got != "rewritten" {
		t.Errorf("after rewrite = %q", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(v.Root(), "PeriodicNotes/2024/Daily/03", ".almanac-tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFS_ReadMissing(t *testing.T) {
	v := newVault(t, nil)
	if _, err := v.Read("2024-W11.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestFS_ArchiveProjectFolder(t *testing.T) {
	v := newVault(t, map[string]string{"1. Projects/Garden/Garden.md": "# Garden"})

	if err := v.Move("1. Projects/Garden", "4. Archives/Garden"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := readString(t, v, "4. Archives/Garden/Garden.md"); got != "# Garden" {
		t.Errorf("moved content = %q", got)
	}
	if v.Exists("1. Projects/Garden") {
		t.Error("project folder still present")
	}
}

func TestFS_MoveKeepsExistingDestination(t *testing.T) {
	v := newVault(t, map[string]string{
		"1. Projects/Garden/Garden.md": "new",
		"4. Archives/Garden/Garden.md": "old",
	})
	err := v.Move("1. Projects/Garden", "4. Archives/Garden")
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("err = %v, want fs.ErrExist", err)
	}
	if got := readString(t, v, "4. Archives/Garden/Garden.md"); got != "old" {
		t.Errorf("destination overwritten: %q", got)
	}
}

func TestFS_List(t *testing.T) {
	v := newVault(t, map[string]string{
		"PeriodicNotes/2024/Weekly/2024-W11.md":     "w",
		"PeriodicNotes/2024/Daily/03/2024-03-15.md": "d",
		"Attachments/memos/5-pic.png":               "png",
		".obsidian/workspace.md":                    "hidden",
	})

	tests := []struct {
		dir  string
		want []string
	}{
		{"", []string{"PeriodicNotes/2024/Daily/03/2024-03-15.md", "PeriodicNotes/2024/Weekly/2024-W11.md"}},
		{"PeriodicNotes/2024/Weekly", []string{"PeriodicNotes/2024/Weekly/2024-W11.md"}},
		{"PeriodicNotes/2025", nil},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, err := v.List(tt.dir)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d notes, want %d: %v", len(got), len(tt.want), got)
			}
			for i, m := range got {
				if m.Path != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, m.Path, tt.want[i])
				}
				if m.Checksum == "" {
					t.Errorf("[%d] empty checksum", i)
				}
			}
		})
	}
}

func TestFS_ListDirs(t *testing.T) {
	v := newVault(t, map[string]string{
		"2. Areas/Health/Health.md":   "x",
		"2. Areas/Finance/Finance.md": "x",
		"2. Areas/loose.md":           "x",
		"2. Areas/.hidden/x.md":       "x",
	})
	dirs, err := v.ListDirs("2. Areas")
	if err != nil {
		t.Fatalf("ListDirs: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "Finance" || dirs[1] != "Health" {
		t.Errorf("dirs = %v", dirs)
	}
	if dirs, err := v.ListDirs("3. Resources"); err != nil || len(dirs) != 0 {
		t.Errorf("missing category = %v, %v", dirs, err)
	}
}

func TestFS_StaysInsideVault(t *testing.T) {
	v := newVault(t, nil)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow", "PeriodicNotes/../../x.md"} {
		t.Run(p, func(t *testing.T) {
			_, err := v.Read(p)
			if !errors.Is(err, ErrOutsideVault) || !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("Read err = %v", err)
			}
			if err := v.Write(p, []byte("x")); !errors.Is(err, ErrOutsideVault) {
				t.Errorf("Write err = %v", err)
			}
			if v.Exists(p) {
				t.Error("Exists should be false")
			}
		})
	}
}

func TestNewFS_Errors(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("missing root accepted")
	}
	f, err := os.CreateTemp(t.TempDir(), "vault-*")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("file root accepted")
	}
}
