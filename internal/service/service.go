// Package service is the single action surface shared by the REST API, the
// MCP server and the CLI.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/dailyrecord"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/para"
	"github.com/starford/almanac/internal/period"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/vault"
)

// Version identifies the action surface. Breaking changes bump it.
const Version = "v1"

// Service exposes every user-facing operation.
type Service struct {
	resolver *period.Resolver
	notes    *periodic.Notes
	para     *para.Manager
	sync     *dailyrecord.Engine
	vault    *vault.Vault
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. engine may be nil when the memo sync is not configured.
func New(v *vault.Vault, resolver *period.Resolver, notes *periodic.Notes, pm *para.Manager, engine *dailyrecord.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{vault: v, resolver: resolver, notes: notes, para: pm, sync: engine, logger: logger, now: time.Now}
}

// ResolvePeriod maps a periodic note file name to its period, range and
// related notes. Unrecognised names resolve to an empty result.
func (s *Service) ResolvePeriod(filename string) period.Resolution {
	return s.resolver.Resolve(filename)
}

// PeriodicNote is a created or located periodic note.
type PeriodicNote struct {
	Kind period.Kind `json:"kind"`
	Path string      `json:"path"`
}

// CreatePeriodic creates the kind-note for date ("YYYY-MM-DD", empty for today).
func (s *Service) CreatePeriodic(ctx context.Context, kind, date string) (PeriodicNote, error) {
	k, err := period.ParseKind(kind)
	if err != nil {
		return PeriodicNote{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	t, err := s.parseDate(date)
	if err != nil {
		return PeriodicNote{}, err
	}
	p, err := s.notes.Create(ctx, t, k)
	if err != nil {
		return PeriodicNote{}, err
	}
	return PeriodicNote{Kind: k, Path: p}, nil
}

func (s *Service) parseDate(date string) (time.Time, error) {
	loc := s.notes.Location()
	date = strings.TrimSpace(date)
	if date == "" {
		return s.now().In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", date, apperr.ErrInvalidInput)
	}
	return t, nil
}

func (s *Service) rangeOf(filename string) (period.DateRange, error) {
	rng := s.resolver.Range(period.Parse(filename))
	if rng.Empty() {
		return rng, fmt.Errorf("%q does not name a dated period: %w", filename, apperr.ErrInvalidInput)
	}
	return rng, nil
}

// Tasks lists the checkbox items of the daily notes inside the period named by filename.
func (s *Service) Tasks(ctx context.Context, filename string) ([]models.Task, error) {
	rng, err := s.rangeOf(filename)
	if err != nil {
		return nil, err
	}
	return s.notes.Tasks(ctx, rng)
}

// SectionLinks lists the links under header in the daily notes of the period.
func (s *Service) SectionLinks(ctx context.Context, filename, header string) ([]string, error) {
	rng, err := s.rangeOf(filename)
	if err != nil {
		return nil, err
	}
	return s.notes.SectionLinks(ctx, rng, header)
}

// Backlinks lists the notes linking to the periodic note named by filename.
func (s *Service) Backlinks(filename string) ([]string, error) {
	if period.Parse(filename).Kind() == period.None {
		return nil, fmt.Errorf("%q is not a periodic note name: %w", filename, apperr.ErrInvalidInput)
	}
	links, err := s.vault.Backlinks(filename)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []string{}
	}
	return links, nil
}

// CreatePARA adds an item to a PARA category.
func (s *Service) CreatePARA(category, name, tag string) (string, error) {
	c, err := para.ParseCategory(category)
	if err != nil {
		return "", err
	}
	return s.para.Create(c, name, tag)
}

// ListPARA lists the items of a PARA category.
func (s *Service) ListPARA(category string) ([]models.ParaItem, error) {
	c, err := para.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return s.para.List(c)
}

// ArchivePARA moves an item into the archives and returns its new folder.
func (s *Service) ArchivePARA(path string) (string, error) {
	return s.para.Archive(path)
}

// SyncEnabled reports whether the memo sync is configured.
func (s *Service) SyncEnabled() bool { return s.sync != nil }

// SyncDailyRecords runs one sync pass.
func (s *Service) SyncDailyRecords(ctx context.Context, force bool) (dailyrecord.Report, error) {
	if s.sync == nil {
		return dailyrecord.Report{}, fmt.Errorf("daily record sync: %w", apperr.ErrNotConfigured)
	}
	return s.sync.Sync(ctx, force)
}

// SyncStatus returns the sync engine's state and last report.
func (s *Service) SyncStatus() (dailyrecord.Status, error) {
	if s.sync == nil {
		return dailyrecord.Status{}, fmt.Errorf("daily record sync: %w", apperr.ErrNotConfigured)
	}
	return s.sync.Status(), nil
}

// ResetSyncCheckpoint makes the next pass fetch the full history.
func (s *Service) ResetSyncCheckpoint() error {
	if s.sync == nil {
		return fmt.Errorf("daily record sync: %w", apperr.ErrNotConfigured)
	}
	if err := s.sync.ResetCheckpoint(); err != nil {
		return err
	}
	s.logger.Info("daily record checkpoint reset")
	return nil
}
