package dailyrecord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/almanac/internal/memos"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/testutil"
)

const (
	header    = "## Daily Record"
	dailyPath = "PeriodicNotes/2023/Daily/11/2023-11-15.md"
	namespace = "daily-record:test"
)

// fakeSource serves pages by index; Cursor.Offset is the page number.
type fakeSource struct {
	mu        sync.Mutex
	session   memos.Session
	discover  error
	pages     []memos.Page
	pageErrs  map[int]error
	files     map[string][]byte
	listCalls int
	block     chan struct{}
	started   chan struct{}
}

func (f *fakeSource) Discover(ctx context.Context) (memos.Session, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return memos.Session{}, ctx.Err()
		}
	}
	return f.session, f.discover
}

func (f *fakeSource) ListPage(_ context.Context, _ memos.Session, cur memos.Cursor) (memos.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.pageErrs[cur.Offset]; err != nil {
		return memos.Page{}, err
	}
	if cur.Offset >= len(f.pages) {
		return memos.Page{}, nil
	}
	p := f.pages[cur.Offset]
	p.Next = memos.Cursor{Offset: cur.Offset + 1}
	return p, nil
}

func (f *fakeSource) Download(_ context.Context, _ memos.Session, a memos.Attachment) ([]byte, error) {
	data, ok := f.files[a.ID]
	if !ok {
		return nil, errors.New("gone")
	}
	return data, nil
}

type harness struct {
	env    *testutil.Env
	src    *fakeSource
	engine *Engine
}

func newHarness(t *testing.T, src *fakeSource, mutate func(*Config)) *harness {
	t.Helper()
	env := testutil.TestVault(t)
	notes := periodic.New(env.Vault, periodic.Config{
		Folder:      "PeriodicNotes",
		Location:    aest,
		DailyHeader: header,
	}, testutil.Logger())
	cfg := Config{
		Header:           header,
		AttachmentFolder: "Attachments/memos",
		Location:         aest,
		CreateDelay:      time.Millisecond,
		Namespace:        namespace,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(src, notes, env.Vault, env.DB, cfg, testutil.Logger())
	e.now = func() time.Time { return time.Unix(1700010000, 0) }
	return &harness{env: env, src: src, engine: e}
}

func (h *harness) checkpoint(t *testing.T) (time.Time, bool) {
	t.Helper()
	ts, ok, err := h.env.DB.GetCheckpoint(namespace)
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	return ts, ok
}

func TestSyncEndToEnd(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{{
		Records: []memos.Record{
			rec("2", 1700006400, "new"),
			rec("1", 1700000000, "hello"),
		},
	}}}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "# 2023-11-15\n\n## Daily Record\n- buy bread\n- 08:13 hello #daily-record ^1700000000\n\n## Notes\nkeep me\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := "# 2023-11-15\n\n## Daily Record\n- buy bread\n- 08:13 hello #daily-record ^1700000000\n- 10:00 new #daily-record ^1700006400\n\n## Notes\nkeep me\n"
	if got := h.env.Read(t, dailyPath); got != want {
		t.Errorf("note =\n%s\nwant\n%s", got, want)
	}
	if rep.Pages != 1 || rep.Records != 2 || rep.DaysMerged != 1 || rep.FilesCreated != 0 || !rep.CheckpointAdvanced {
		t.Errorf("report = %+v", rep)
	}
	if ts, ok := h.checkpoint(t); !ok || ts.Unix() != 1700010000 {
		t.Errorf("checkpoint = %v ok=%v", ts, ok)
	}
	if st := h.engine.Status(); st.State != Idle || st.Last == nil || st.Last.Records != 2 {
		t.Errorf("status = %+v", st)
	}

	// A second pass sees only records older than the checkpoint.
	rep, err = h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync 2: %v", err)
	}
	if rep.DaysMerged != 0 || rep.Pages != 1 {
		t.Errorf("second report = %+v", rep)
	}
	if got := h.env.Read(t, dailyPath); got != want {
		t.Errorf("note changed on second pass:\n%s", got)
	}
}

func TestSyncCreatedFileKeepsCheckpoint(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{{Records: []memos.Record{rec("1", 1700000000, "hello")}}}}
	h := newHarness(t, src, func(c *Config) { c.AutoCreate = true })

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.FilesCreated != 1 || rep.DaysMerged != 1 || rep.CheckpointAdvanced {
		t.Errorf("report = %+v", rep)
	}
	if _, ok := h.checkpoint(t); ok {
		t.Error("checkpoint must not advance when a note was created")
	}
	want := "# 2023-11-15\n\n## Daily Record\n- 08:13 hello #daily-record ^1700000000\n"
	if got := h.env.Read(t, dailyPath); got != want {
		t.Errorf("note =\n%q\nwant\n%q", got, want)
	}

	// Next pass finds the note and may advance.
	rep, err = h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync 2: %v", err)
	}
	if rep.FilesCreated != 0 || !rep.CheckpointAdvanced {
		t.Errorf("second report = %+v", rep)
	}
	if got := h.env.Read(t, dailyPath); got != want {
		t.Errorf("note changed on second pass:\n%q", got)
	}
}

func TestSyncMissingNoteSkipped(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{{Records: []memos.Record{rec("1", 1700000000, "hello")}}}}
	h := newHarness(t, src, func(c *Config) { c.WarnMissing = true })

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.DaysSkipped != 1 || rep.DaysMerged != 0 || !rep.CheckpointAdvanced {
		t.Errorf("report = %+v", rep)
	}
	if h.env.Vault.Exists(dailyPath) {
		t.Error("note must not be created without auto_create")
	}
}

func TestSyncMissingHeaderSkipped(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{{Records: []memos.Record{rec("1", 1700000000, "hello")}}}}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "# 2023-11-15\n\n## Journal\nnothing\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.DaysSkipped != 1 {
		t.Errorf("report = %+v", rep)
	}
	if got := h.env.Read(t, dailyPath); got != "# 2023-11-15\n\n## Journal\nnothing\n" {
		t.Errorf("note changed: %q", got)
	}
}

func TestSyncPagination(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{
		{Records: []memos.Record{rec("3", 1700006400, "third")}, More: true},
		{Records: []memos.Record{rec("2", 1700003000, "second")}, More: true},
		{Records: []memos.Record{rec("1", 1700000000, "first")}, More: false},
		{Records: []memos.Record{rec("0", 1699990000, "never fetched")}},
	}}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "## Daily Record\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Pages != 3 || src.listCalls != 3 {
		t.Errorf("pages = %d calls = %d", rep.Pages, src.listCalls)
	}
	got := h.env.Read(t, dailyPath)
	if strings.Contains(got, "never fetched") || !strings.Contains(got, "first") || !strings.Contains(got, "third") {
		t.Errorf("note = %s", got)
	}
}

func TestSyncStopsOnEmptyPage(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{
		{Records: []memos.Record{rec("1", 1700000000, "only")}, More: true},
		{More: true},
	}}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "## Daily Record\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Pages != 2 || src.listCalls != 2 {
		t.Errorf("pages = %d calls = %d", rep.Pages, src.listCalls)
	}
}

func TestSyncStopsAtCheckpointUnlessForced(t *testing.T) {
	pages := []memos.Page{
		{Records: []memos.Record{rec("2", 1700006400, "fresh"), rec("1", 1700000000, "stale")}, More: true},
		{Records: []memos.Record{rec("0", 1699999000, "older")}},
	}
	src := &fakeSource{pages: pages}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "## Daily Record\n")
	if err := h.env.DB.SetCheckpoint(namespace, time.Unix(1700003000, 0)); err != nil {
		t.Fatal(err)
	}

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if src.listCalls != 1 || rep.Since.Unix() != 1700003000 {
		t.Errorf("calls = %d report = %+v", src.listCalls, rep)
	}
	got := h.env.Read(t, dailyPath)
	if !strings.Contains(got, "fresh") || strings.Contains(got, "stale") {
		t.Errorf("note = %s", got)
	}

	src.listCalls = 0
	rep, err = h.engine.Sync(context.Background(), true)
	if err != nil {
		t.Fatalf("forced Sync: %v", err)
	}
	if src.listCalls != 2 || !rep.Forced {
		t.Errorf("forced calls = %d report = %+v", src.listCalls, rep)
	}
	got = h.env.Read(t, dailyPath)
	if !strings.Contains(got, "stale") || !strings.Contains(got, "older") {
		t.Errorf("forced note = %s", got)
	}
}

func TestSyncAttachments(t *testing.T) {
	src := &fakeSource{
		pages: []memos.Page{{Records: []memos.Record{
			rec("1", 1700000000, "pics",
				memos.Attachment{ID: "5", Filename: "a.png"},
				memos.Attachment{ID: "6", Filename: "missing.png"},
				memos.Attachment{ID: "7", Filename: "ext.png", ExternalLink: "https://img.example/ext.png"}),
		}}},
		files: map[string][]byte{"5": []byte("png")},
	}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "## Daily Record\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Attachments != 1 || rep.DaysMerged != 1 {
		t.Errorf("report = %+v", rep)
	}
	if !h.env.Vault.Exists("Attachments/memos/5-a.png") {
		t.Error("attachment not stored")
	}
	if got := h.env.Read(t, dailyPath); !strings.Contains(got, "\t- ![[5-a.png]]") || !strings.Contains(got, "\t- ![](https://img.example/ext.png)") {
		t.Errorf("note = %s", got)
	}
}

func TestSyncDiscoverFailure(t *testing.T) {
	src := &fakeSource{discover: errors.New("connection refused")}
	h := newHarness(t, src, nil)

	rep, err := h.engine.Sync(context.Background(), false)
	if err == nil || rep.Error == "" {
		t.Fatalf("expected error, got %v / %+v", err, rep)
	}
	if _, ok := h.checkpoint(t); ok {
		t.Error("checkpoint must not advance on failure")
	}
	if st := h.engine.Status(); st.State != Idle {
		t.Errorf("state = %v", st.State)
	}
}

func TestSyncPageFailure(t *testing.T) {
	src := &fakeSource{
		pages: []memos.Page{
			{Records: []memos.Record{rec("1", 1700000000, "hello")}, More: true},
			{Records: []memos.Record{rec("0", 1699990000, "unreachable")}},
		},
		pageErrs: map[int]error{1: errors.New("boom")},
	}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "## Daily Record\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "page 2: boom") {
		t.Fatalf("err = %v", err)
	}
	if rep.Error == "" || rep.DaysMerged != 1 || rep.Pages != 1 || rep.CheckpointAdvanced {
		t.Errorf("report = %+v", rep)
	}
	got := h.env.Read(t, dailyPath)
	if !strings.Contains(got, "- 08:13 hello #daily-record ^1700000000") || strings.Contains(got, "unreachable") {
		t.Errorf("note = %q", got)
	}
	if _, ok := h.checkpoint(t); ok {
		t.Error("checkpoint must not advance after a failed page")
	}
	if st := h.engine.Status(); st.State != Idle || st.Last == nil || st.Last.Error == "" {
		t.Errorf("status = %+v", st)
	}
}

// gatedSource holds every download until want downloads are in flight at once.
type gatedSource struct {
	*fakeSource
	want    int
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (g *gatedSource) Download(ctx context.Context, s memos.Session, a memos.Attachment) ([]byte, error) {
	g.mu.Lock()
	g.calls++
	if g.calls == g.want {
		close(g.release)
	}
	g.mu.Unlock()
	select {
	case <-g.release:
	case <-time.After(2 * time.Second):
		return nil, errors.New("downloads ran one at a time")
	}
	return g.fakeSource.Download(ctx, s, a)
}

func TestSyncAttachmentsConcurrent(t *testing.T) {
	shared := memos.Attachment{ID: "5", Filename: "a.png"}
	src := &gatedSource{
		fakeSource: &fakeSource{
			pages: []memos.Page{{Records: []memos.Record{
				rec("1", 1700000000, "one", shared, memos.Attachment{ID: "6", Filename: "b.png"}),
				rec("2", 1700000100, "two", shared),
			}}},
			files: map[string][]byte{"5": []byte("a"), "6": []byte("b")},
		},
		want:    2,
		release: make(chan struct{}),
	}
	h := newHarness(t, src.fakeSource, nil)
	h.engine.src = src
	h.env.Write(t, dailyPath, "## Daily Record\n")

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Attachments != 2 {
		t.Errorf("attachments = %d, want 2", rep.Attachments)
	}
	if src.calls != 2 {
		t.Errorf("downloads = %d, want 2 (shared attachment fetched once)", src.calls)
	}
	for _, p := range []string{"Attachments/memos/5-a.png", "Attachments/memos/6-b.png"} {
		if !h.env.Vault.Exists(p) {
			t.Errorf("%s not stored", p)
		}
	}
}

func TestSyncRejectsOverlap(t *testing.T) {
	src := &fakeSource{block: make(chan struct{}), started: make(chan struct{})}
	h := newHarness(t, src, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Sync(context.Background(), false)
		done <- err
	}()
	<-src.started

	if st := h.engine.Status(); st.State != FetchingMetadata {
		t.Errorf("state = %v, want fetching_metadata", st.State)
	}
	if _, err := h.engine.Sync(context.Background(), false); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("err = %v, want ErrSyncInProgress", err)
	}
	close(src.block)
	if err := <-done; err != nil {
		t.Errorf("first Sync: %v", err)
	}
}

// racingFiles edits the note right before the engine's first write.
type racingFiles struct {
	Files
	once  sync.Once
	write func()
}

func (r *racingFiles) CompareAndWrite(path, expected, content string) error {
	r.once.Do(r.write)
	return r.Files.CompareAndWrite(path, expected, content)
}

func TestSyncRemergesOnConflict(t *testing.T) {
	src := &fakeSource{pages: []memos.Page{{Records: []memos.Record{rec("1", 1700000000, "hello")}}}}
	h := newHarness(t, src, nil)
	h.env.Write(t, dailyPath, "## Daily Record\n")

	files := &racingFiles{Files: h.env.Vault, write: func() {
		_ = h.env.Vault.WriteText(dailyPath, "## Daily Record\n- typed meanwhile\n")
	}}
	h.engine.files = files

	rep, err := h.engine.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := "## Daily Record\n- typed meanwhile\n- 08:13 hello #daily-record ^1700000000\n"
	if got := h.env.Read(t, dailyPath); got != want || rep.DaysMerged != 1 {
		t.Errorf("note = %q report = %+v", got, rep)
	}
}

func TestTransitions(t *testing.T) {
	legal := [][2]State{
		{Idle, FetchingMetadata},
		{FetchingMetadata, FetchingPage},
		{FetchingMetadata, Idle},
		{FetchingPage, Merging},
		{FetchingPage, Idle},
		{Merging, FetchingPage},
		{Merging, Idle},
	}
	for _, p := range legal {
		if !CanTransition(p[0], p[1]) {
			t.Errorf("%v -> %v should be legal", p[0], p[1])
		}
	}
	for _, p := range [][2]State{{Idle, Merging}, {Idle, FetchingPage}, {FetchingMetadata, Merging}, {Merging, FetchingMetadata}} {
		if CanTransition(p[0], p[1]) {
			t.Errorf("%v -> %v should be illegal", p[0], p[1])
		}
	}
}
