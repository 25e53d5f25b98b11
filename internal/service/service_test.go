package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/memos"
	"github.com/starford/almanac/internal/period"
	"github.com/starford/almanac/internal/service/servicetest"
)

func TestResolvePeriod(t *testing.T) {
	svc, env := servicetest.New(t, nil)
	env.Write(t, "PeriodicNotes/2024/Weekly/2024-W10.md", "# 2024-W10\n")

	res := svc.ResolvePeriod("2024-03.md")
	if res.Kind != period.Month || len(res.Related.Weeks) != 1 || res.Related.Weeks[0].Path != "PeriodicNotes/2024/Weekly/2024-W10.md" {
		t.Errorf("resolution = %+v", res)
	}
	if res := svc.ResolvePeriod("W05.md"); !res.Range.Empty() {
		t.Errorf("year-less week should not resolve: %+v", res.Range)
	}
}

func TestCreatePeriodic(t *testing.T) {
	svc, env := servicetest.New(t, nil)
	ctx := context.Background()

	note, err := svc.CreatePeriodic(ctx, "quarterly", "2024-05-02")
	if err != nil {
		t.Fatalf("CreatePeriodic: %v", err)
	}
	if note.Path != "PeriodicNotes/2024/Quarterly/2024-Q2.md" || note.Kind != period.Quarter {
		t.Errorf("note = %+v", note)
	}
	if got := env.Read(t, note.Path); got != "# 2024-Q2\n" {
		t.Errorf("content = %q", got)
	}

	for _, tc := range []struct{ kind, date string }{{"fortnight", ""}, {"day", "02/05/2024"}} {
		if _, err := svc.CreatePeriodic(ctx, tc.kind, tc.date); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("CreatePeriodic(%q, %q) err = %v", tc.kind, tc.date, err)
		}
	}

	today, err := svc.CreatePeriodic(ctx, "day", "")
	if err != nil {
		t.Fatalf("CreatePeriodic today: %v", err)
	}
	if want := period.Link(period.Day, time.Now().UTC()); !env.Vault.Exists(today.Path) || today.Path[len(today.Path)-13:] != want+".md" {
		t.Errorf("today = %+v", today)
	}
}

func TestTasksAndSectionLinks(t *testing.T) {
	svc, env := servicetest.New(t, nil)
	env.Write(t, "PeriodicNotes/2024/Daily/03/2024-03-05.md", "## Areas\n- [[Health]]\n\n## Todo\n- [ ] stretch\n")

	tasks, err := svc.Tasks(context.Background(), "2024-W10.md")
	if err != nil || len(tasks) != 1 || tasks[0].Text != "stretch" {
		t.Errorf("tasks = %+v, %v", tasks, err)
	}
	links, err := svc.SectionLinks(context.Background(), "2024-03", "## Areas")
	if err != nil || len(links) != 1 || links[0] != "Health" {
		t.Errorf("links = %v, %v", links, err)
	}
	if _, err := svc.Tasks(context.Background(), "Inbox.md"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestBacklinks(t *testing.T) {
	svc, env := servicetest.New(t, nil)
	env.Write(t, "1. Projects/Garden/Garden.md", "Planned in [[2024-W10]].\n")

	links, err := svc.Backlinks("PeriodicNotes/2024/Weekly/2024-W10.md")
	if err != nil || len(links) != 1 || links[0] != "1. Projects/Garden/Garden.md" {
		t.Errorf("links = %v, %v", links, err)
	}
	links, err = svc.Backlinks("2024-W11.md")
	if err != nil || links == nil || len(links) != 0 {
		t.Errorf("links = %#v, %v", links, err)
	}
	if _, err := svc.Backlinks("Inbox.md"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPARA(t *testing.T) {
	svc, _ := servicetest.New(t, nil)

	p, err := svc.CreatePARA("project", "Garden", "")
	if err != nil {
		t.Fatalf("CreatePARA: %v", err)
	}
	items, err := svc.ListPARA("projects")
	if err != nil || len(items) != 1 || items[0].Path != p {
		t.Errorf("items = %+v, %v", items, err)
	}
	dest, err := svc.ArchivePARA(p)
	if err != nil || dest != "4. Archives/Garden" {
		t.Errorf("ArchivePARA = %q, %v", dest, err)
	}
	if _, err := svc.ListPARA("inbox"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSyncNotConfigured(t *testing.T) {
	svc, _ := servicetest.New(t, nil)
	if svc.SyncEnabled() {
		t.Error("sync should be disabled")
	}
	if _, err := svc.SyncDailyRecords(context.Background(), false); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
	if _, err := svc.SyncStatus(); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
	if err := svc.ResetSyncCheckpoint(); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestSyncDailyRecords(t *testing.T) {
	src := &servicetest.Source{Records: []memos.Record{{ID: "1", CreatedAt: time.Unix(1700000000, 0), Content: "hello"}}}
	svc, env := servicetest.New(t, src)
	env.Write(t, "PeriodicNotes/2023/Daily/11/2023-11-14.md", "## Daily Record\n")

	rep, err := svc.SyncDailyRecords(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.DaysMerged != 1 || !rep.CheckpointAdvanced || rep.Protocol != "current" {
		t.Errorf("report = %+v", rep)
	}
	if got := env.Read(t, "PeriodicNotes/2023/Daily/11/2023-11-14.md"); got != "## Daily Record\n- 22:13 hello #daily-record ^1700000000\n" {
		t.Errorf("note = %q", got)
	}
	st, err := svc.SyncStatus()
	if err != nil || st.Last == nil || st.Last.DaysMerged != 1 {
		t.Errorf("status = %+v, %v", st, err)
	}
	if err := svc.ResetSyncCheckpoint(); err != nil {
		t.Errorf("ResetSyncCheckpoint: %v", err)
	}
}
