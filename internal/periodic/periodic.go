// Package periodic lays out, creates and scans the periodic notes of a vault.
package periodic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/markdown"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/period"
	"github.com/starford/almanac/internal/vault"
)

// Config describes where periodic notes live and how new ones start.
type Config struct {
	// Folder is the vault folder holding all periodic notes.
	Folder string
	// Location is the zone calendar days are computed in.
	Location *time.Location
	// Templates maps a kind to the vault path of its template note.
	Templates map[period.Kind]string
	// DailyHeader is appended to the default daily skeleton when set.
	DailyHeader string
}

// Notes manages periodic notes through a vault.
type Notes struct {
	vault  *vault.Vault
	cfg    Config
	logger *slog.Logger
}

// New creates Notes over v.
func New(v *vault.Vault, cfg Config, logger *slog.Logger) *Notes {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notes{vault: v, cfg: cfg, logger: logger}
}

// Folder returns the periodic-notes folder.
func (n *Notes) Folder() string { return n.cfg.Folder }

// Location returns the zone used for calendar days.
func (n *Notes) Location() *time.Location { return n.cfg.Location }

// Path returns the canonical vault path of the kind-note containing t.
func (n *Notes) Path(kind period.Kind, t time.Time) string {
	t = t.In(n.cfg.Location)
	name := period.Link(kind, t) + ".md"
	year := fmt.Sprintf("%04d", t.Year())

	var rel string
	switch kind {
	case period.Day:
		rel = path.Join(year, "Daily", fmt.Sprintf("%02d", int(t.Month())), name)
	case period.Week:
		isoYear, _ := t.ISOWeek()
		rel = path.Join(fmt.Sprintf("%04d", isoYear), "Weekly", name)
	case period.Month:
		rel = path.Join(year, "Monthly", name)
	case period.Quarter:
		rel = path.Join(year, "Quarterly", name)
	case period.Year:
		rel = path.Join(year, name)
	default:
		return ""
	}
	if n.cfg.Folder == "" {
		return rel
	}
	return path.Join(n.cfg.Folder, rel)
}

// Locate finds the existing kind-note containing t. Notes moved away from
// their canonical path are still found through the index.
func (n *Notes) Locate(kind period.Kind, t time.Time) (string, bool, error) {
	if p := n.Path(kind, t); p != "" && n.vault.Exists(p) {
		return p, true, nil
	}
	return n.vault.Locate(period.Link(kind, t.In(n.cfg.Location)), n.cfg.Folder)
}

// Create writes a new kind-note for the period containing t and returns its
// path. It fails with apperr.ErrAlreadyExists when the note is present.
func (n *Notes) Create(ctx context.Context, t time.Time, kind period.Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := n.Path(kind, t)
	if p == "" {
		return "", fmt.Errorf("periodic: kind %v: %w", kind, apperr.ErrInvalidInput)
	}
	content, err := n.render(kind, t.In(n.cfg.Location))
	if err != nil {
		return "", err
	}
	if err := n.vault.Create(p, content); err != nil {
		return "", err
	}
	n.logger.Info("periodic note created", slog.String("path", p), slog.String("kind", kind.String()))
	return p, nil
}

func (n *Notes) render(kind period.Kind, t time.Time) (string, error) {
	title := period.Link(kind, t)
	if tpl := n.cfg.Templates[kind]; tpl != "" {
		body, _, err := n.vault.ReadText(tpl)
		switch {
		case err == nil:
			return Expand(body, t, title), nil
		case errors.Is(err, apperr.ErrNotFound):
			n.logger.Warn("periodic template missing, using default",
				slog.String("template", tpl), slog.String("kind", kind.String()))
		default:
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString("# " + title + "\n")
	if kind == period.Day && n.cfg.DailyHeader != "" {
		b.WriteString("\n" + n.cfg.DailyHeader + "\n")
	}
	return b.String(), nil
}

// Expand fills the {{date}} and {{title}} placeholders of a template.
func Expand(tpl string, t time.Time, title string) string {
	return strings.NewReplacer(
		"{{date}}", t.Format(time.DateOnly),
		"{{title}}", title,
	).Replace(tpl)
}

// dailyNotes yields the existing daily notes in rng, in calendar order.
func (n *Notes) dailyNotes(ctx context.Context, rng period.DateRange, fn func(path, content string) error) error {
	for _, d := range rng.Days() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, ok, err := n.Locate(period.Day, d)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		content, _, err := n.vault.ReadText(p)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(p, content); err != nil {
			return err
		}
	}
	return nil
}

// Tasks returns the checkbox items of the daily notes in rng.
func (n *Notes) Tasks(ctx context.Context, rng period.DateRange) ([]models.Task, error) {
	out := []models.Task{}
	err := n.dailyNotes(ctx, rng, func(p, content string) error {
		for _, it := range markdown.Tasks(content) {
			out = append(out, models.Task{Path: p, Text: it.Text, Done: it.Done, Line: it.Line})
		}
		return nil
	})
	return out, err
}

// SectionLinks returns the wikilink targets found under header in the daily
// notes of rng, deduplicated in order of first appearance.
func (n *Notes) SectionLinks(ctx context.Context, rng period.DateRange, header string) ([]string, error) {
	if markdown.HeaderLevel(header) == 0 {
		return nil, fmt.Errorf("periodic: header %q: %w", header, apperr.ErrInvalidInput)
	}
	seen := make(map[string]bool)
	out := []string{}
	err := n.dailyNotes(ctx, rng, func(_, content string) error {
		sec, ok := markdown.FindSection(content, header)
		if !ok {
			return nil
		}
		for _, l := range markdown.Links(sec.Body(content)) {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}
