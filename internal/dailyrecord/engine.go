// Package dailyrecord syncs memos from a Memos server into the "Daily Record"
// section of the matching daily notes.
package dailyrecord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/markdown"
	"github.com/starford/almanac/internal/memos"
	"github.com/starford/almanac/internal/period"
)

// ErrSyncInProgress is returned when Sync is called while a pass is running.
var ErrSyncInProgress = errors.New("dailyrecord: sync already in progress")

// maxWriteAttempts bounds re-merging a day whose note changed under us.
const maxWriteAttempts = 3

// Source is the remote side of the sync.
type Source interface {
	Discover(ctx context.Context) (memos.Session, error)
	ListPage(ctx context.Context, s memos.Session, cur memos.Cursor) (memos.Page, error)
	Download(ctx context.Context, s memos.Session, a memos.Attachment) ([]byte, error)
}

// DailyNotes finds and creates daily notes.
type DailyNotes interface {
	Locate(kind period.Kind, t time.Time) (string, bool, error)
	Create(ctx context.Context, t time.Time, kind period.Kind) (string, error)
}

// Files is the vault access the engine needs.
type Files interface {
	ReadText(path string) (content, sum string, err error)
	CompareAndWrite(path, expected, content string) error
	Exists(path string) bool
	WriteBinary(path string, data []byte) error
	EnsureFolder(folder string) error
}

// Config controls one engine.
type Config struct {
	// Header is the Markdown heading of the section records are merged into.
	Header string
	// AutoCreate creates missing daily notes.
	AutoCreate bool
	// WarnMissing logs a warning for days without a note when AutoCreate is off.
	WarnMissing bool
	// AttachmentFolder receives downloaded attachments.
	AttachmentFolder string
	// Location decides which calendar day a record belongs to.
	Location *time.Location
	// CreateDelay is the wait between lookups of a freshly created note.
	CreateDelay time.Duration
	// Namespace keys the persisted checkpoint.
	Namespace string
	// Concurrency bounds the days merged in parallel.
	Concurrency int
	// Observer is told about every pass; nil discards.
	Observer Observer
}

// Report summarises a sync pass.
type Report struct {
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Forced             bool      `json:"forced"`
	Protocol           string    `json:"protocol,omitempty"`
	Since              time.Time `json:"since,omitzero"`
	Pages              int       `json:"pages"`
	Records            int       `json:"records"`
	DaysMerged         int       `json:"days_merged"`
	DaysSkipped        int       `json:"days_skipped"`
	FilesCreated       int       `json:"files_created"`
	Attachments        int       `json:"attachments"`
	CheckpointAdvanced bool      `json:"checkpoint_advanced"`
	Error              string    `json:"error,omitempty"`
}

// Status is the engine's current phase and its last finished pass.
type Status struct {
	State State   `json:"state"`
	Last  *Report `json:"last,omitempty"`
}

// Engine runs sync passes. One pass runs at a time.
type Engine struct {
	src         Source
	notes       DailyNotes
	files       Files
	checkpoints index.CheckpointStore
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time

	running atomic.Bool

	mu    sync.Mutex
	state State
	last  *Report
}

// New creates an Engine.
func New(src Source, notes DailyNotes, files Files, checkpoints index.CheckpointStore, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CreateDelay <= 0 {
		cfg.CreateDelay = 100 * time.Millisecond
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		src:         src,
		notes:       notes,
		files:       files,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Status returns the current state and the last report.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{State: e.state, Last: e.last}
}

func (e *Engine) transition(to State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !CanTransition(e.state, to) {
		panic(fmt.Sprintf("dailyrecord: illegal transition %s -> %s", e.state, to))
	}
	e.state = to
}

// ResetCheckpoint forgets the last sync time so the next pass fetches everything.
func (e *Engine) ResetCheckpoint() error {
	return e.checkpoints.ResetCheckpoint(e.cfg.Namespace)
}

// Sync runs one pass: discover the server, page through records newest first
// and merge each page by day. Unless force is set, paging stops at the first
// page reaching back past the checkpoint. The checkpoint moves to the pass
// start time only when the pass finished and created no notes.
func (e *Engine) Sync(ctx context.Context, force bool) (Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.cfg.Observer.ObservePass(Report{}, ErrSyncInProgress)
		return Report{}, ErrSyncInProgress
	}
	defer e.running.Store(false)

	rep := &Report{StartedAt: e.now(), Forced: force}
	err := e.run(ctx, rep)
	rep.FinishedAt = e.now()
	if err != nil {
		rep.Error = err.Error()
	}

	e.mu.Lock()
	e.state = Idle
	e.last = rep
	e.mu.Unlock()
	e.cfg.Observer.ObservePass(*rep, err)

	e.logger.Info("daily record sync finished",
		slog.Int("pages", rep.Pages),
		slog.Int("records", rep.Records),
		slog.Int("days_merged", rep.DaysMerged),
		slog.Int("days_skipped", rep.DaysSkipped),
		slog.Int("files_created", rep.FilesCreated),
		slog.Bool("checkpoint_advanced", rep.CheckpointAdvanced),
		slog.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)))
	return *rep, err
}

func (e *Engine) run(ctx context.Context, rep *Report) error {
	e.transition(FetchingMetadata)
	session, err := e.src.Discover(ctx)
	if err != nil {
		e.transition(Idle)
		return fmt.Errorf("dailyrecord: discover: %w", err)
	}
	rep.Protocol = session.Protocol.String()

	var since time.Time
	if !rep.Forced {
		t, ok, err := e.checkpoints.GetCheckpoint(e.cfg.Namespace)
		if err != nil {
			e.logger.Warn("dailyrecord: read checkpoint failed, fetching everything", slog.String("error", err.Error()))
		} else if ok {
			since = t
			rep.Since = t
		}
	}

	var cur memos.Cursor
	for {
		e.transition(FetchingPage)
		page, err := e.src.ListPage(ctx, session, cur)
		if err != nil {
			e.transition(Idle)
			return fmt.Errorf("dailyrecord: page %d: %w", rep.Pages+1, err)
		}
		rep.Pages++
		if len(page.Records) == 0 {
			e.transition(Idle)
			break
		}
		rep.Records += len(page.Records)

		e.transition(Merging)
		reachedCheckpoint := false
		var fresh []memos.Record
		for _, r := range page.Records {
			if !since.IsZero() && r.CreatedAt.Before(since) {
				reachedCheckpoint = true
				continue
			}
			fresh = append(fresh, r)
		}
		if err := e.mergePage(ctx, session, fresh, rep); err != nil {
			e.transition(Idle)
			return err
		}

		if reachedCheckpoint || !page.More {
			e.transition(Idle)
			break
		}
		cur = page.Next
	}

	if rep.FilesCreated > 0 {
		e.logger.Info("dailyrecord: notes were created, checkpoint kept", slog.Int("files_created", rep.FilesCreated))
		return nil
	}
	if err := e.checkpoints.SetCheckpoint(e.cfg.Namespace, rep.StartedAt); err != nil {
		e.logger.Warn("dailyrecord: save checkpoint failed", slog.String("error", err.Error()))
		return nil
	}
	rep.CheckpointAdvanced = true
	return nil
}

type dayBatch struct {
	day     time.Time
	records []memos.Record
}

// groupByDay buckets records by calendar day in loc, ordered by day.
func groupByDay(records []memos.Record, loc *time.Location) []dayBatch {
	byDay := make(map[time.Time][]memos.Record)
	for _, r := range records {
		t := r.CreatedAt.In(loc)
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		byDay[d] = append(byDay[d], r)
	}
	out := make([]dayBatch, 0, len(byDay))
	for d, rs := range byDay {
		out = append(out, dayBatch{day: d, records: rs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].day.Before(out[j].day) })
	return out
}

type dayResult struct {
	merged  bool
	created bool
	files   int
}

// mergePage merges every day of a page concurrently. A failing day is logged
// and counted as skipped; only cancellation aborts the page.
func (e *Engine) mergePage(ctx context.Context, s memos.Session, records []memos.Record, rep *Report) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, b := range groupByDay(records, e.cfg.Location) {
		g.Go(func() error {
			res, err := e.mergeDay(gctx, s, b)
			mu.Lock()
			defer mu.Unlock()
			rep.Attachments += res.files
			if res.created {
				rep.FilesCreated++
			}
			if res.merged {
				rep.DaysMerged++
			} else {
				rep.DaysSkipped++
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Error("dailyrecord: merge day failed",
					slog.String("day", b.day.Format(time.DateOnly)), slog.String("error", err.Error()))
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) mergeDay(ctx context.Context, s memos.Session, b dayBatch) (dayResult, error) {
	var res dayResult
	dayName := b.day.Format(time.DateOnly)

	p, ok, err := e.notes.Locate(period.Day, b.day)
	if err != nil {
		return res, err
	}
	if !ok {
		switch {
		case e.cfg.AutoCreate:
			p, err = e.createDaily(ctx, b.day)
			if err != nil {
				return res, err
			}
			res.created = true
		case e.cfg.WarnMissing:
			e.logger.Warn("dailyrecord: daily note missing, records skipped",
				slog.String("day", dayName), slog.Int("records", len(b.records)))
			return res, nil
		default:
			return res, nil
		}
	}

	res.files = e.downloadAttachments(ctx, s, b.records)

	fetched := make(map[int64]string, len(b.records))
	for _, r := range b.records {
		fetched[Key(r)] = Format(r, e.cfg.Location)
	}

	for attempt := 1; ; attempt++ {
		content, sum, err := e.files.ReadText(p)
		if err != nil {
			return res, err
		}
		sec, ok := markdown.FindSection(content, e.cfg.Header)
		if !ok {
			e.logger.Warn("dailyrecord: header not found, day skipped",
				slog.String("path", p), slog.String("header", e.cfg.Header))
			return res, nil
		}
		updated := markdown.ReplaceSection(content, sec, Merge(sec.Body(content), b.day, fetched))
		if updated == content {
			res.merged = true
			return res, nil
		}
		err = e.files.CompareAndWrite(p, sum, updated)
		if err == nil {
			res.merged = true
			return res, nil
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt >= maxWriteAttempts {
			return res, err
		}
		e.logger.Debug("dailyrecord: note changed during merge, retrying", slog.String("path", p), slog.Int("attempt", attempt))
	}
}

// createDaily creates the note for day and waits until it can be located.
func (e *Engine) createDaily(ctx context.Context, day time.Time) (string, error) {
	if _, err := e.notes.Create(ctx, day, period.Day); err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
		return "", fmt.Errorf("dailyrecord: create daily note: %w", err)
	}

	var p string
	locate := func() error {
		found, ok, err := e.notes.Locate(period.Day, day)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return fmt.Errorf("dailyrecord: daily note %s not visible yet: %w", day.Format(time.DateOnly), apperr.ErrNotFound)
		}
		p = found
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.CreateDelay), 5)
	if err := backoff.Retry(locate, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return p, nil
}

// downloadAttachments stores the server-hosted attachments of records that
// are not in the vault yet, fetching them concurrently, and returns how many
// were written. Failed downloads are logged and left for the next pass.
func (e *Engine) downloadAttachments(ctx context.Context, s memos.Session, records []memos.Record) int {
	pending := make(map[string]memos.Attachment)
	for _, r := range records {
		for _, a := range r.Attachments {
			if a.ExternalLink != "" {
				continue
			}
			p := path.Join(e.cfg.AttachmentFolder, AttachmentName(a))
			if _, dup := pending[p]; dup || e.files.Exists(p) {
				continue
			}
			pending[p] = a
		}
	}
	if len(pending) == 0 {
		return 0
	}
	if err := e.files.EnsureFolder(e.cfg.AttachmentFolder); err != nil {
		e.logger.Warn("dailyrecord: attachment folder", slog.String("error", err.Error()))
		return 0
	}

	var written atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for p, a := range pending {
		g.Go(func() error {
			data, err := e.src.Download(gctx, s, a)
			if err != nil {
				e.logger.Warn("dailyrecord: download attachment failed",
					slog.String("attachment", a.ID), slog.String("error", err.Error()))
				return nil
			}
			if err := e.files.WriteBinary(p, data); err != nil {
				e.logger.Warn("dailyrecord: save attachment failed",
					slog.String("path", p), slog.String("error", err.Error()))
				return nil
			}
			written.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(written.Load())
}
