// Package para manages the Projects / Areas / Resources / Archives folders of
// a vault. Every item is a folder holding an index note.
package para

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/markdown"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/vault"
)

// Category is one of the four PARA buckets.
type Category string

const (
	Projects  Category = "projects"
	Areas     Category = "areas"
	Resources Category = "resources"
	Archives  Category = "archives"
)

// Categories lists every category in PARA order.
var Categories = []Category{Projects, Areas, Resources, Archives}

// ParseCategory accepts plural or singular names in any case.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if s == string(c) || s+"s" == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("para: unknown category %q: %w", s, apperr.ErrInvalidInput)
}

// Tag is the default tag written to new items of c.
func (c Category) Tag() string {
	return strings.TrimSuffix(string(c), "s")
}

// Config maps categories to vault folders.
type Config struct {
	Folders map[Category]string
	// IndexName is the file name of an item's index note, without ".md".
	// Empty means the note is named after its folder.
	IndexName string
}

// Manager creates, lists and archives PARA items.
type Manager struct {
	vault  *vault.Vault
	cfg    Config
	logger *slog.Logger
}

// New creates a Manager. Missing folders default to "1. Projects",
// "2. Areas", "3. Resources" and "4. Archives".
func New(v *vault.Vault, cfg Config, logger *slog.Logger) *Manager {
	defaults := map[Category]string{
		Projects:  "1. Projects",
		Areas:     "2. Areas",
		Resources: "3. Resources",
		Archives:  "4. Archives",
	}
	folders := make(map[Category]string, len(defaults))
	for c, f := range defaults {
		folders[c] = f
		if custom := cfg.Folders[c]; custom != "" {
			folders[c] = custom
		}
	}
	cfg.Folders = folders
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{vault: v, cfg: cfg, logger: logger}
}

// Folder returns the vault folder of c.
func (m *Manager) Folder(c Category) string { return m.cfg.Folders[c] }

func (m *Manager) indexPath(folder, name string) string {
	file := m.cfg.IndexName
	if file == "" {
		file = name
	}
	return path.Join(folder, name, file+".md")
}

// Create adds item name to category c and returns the index note path. An
// empty tag defaults to the category's singular name.
func (m *Manager) Create(c Category, name, tag string) (string, error) {
	folder, ok := m.cfg.Folders[c]
	if !ok {
		return "", fmt.Errorf("para: category %q: %w", c, apperr.ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return "", err
	}
	if tag == "" {
		tag = c.Tag()
	}
	if m.vault.Exists(path.Join(folder, name)) {
		return "", fmt.Errorf("para: %s/%s: %w", folder, name, apperr.ErrAlreadyExists)
	}

	fm, err := yaml.Marshal(map[string][]string{"tags": {tag}})
	if err != nil {
		return "", fmt.Errorf("para: frontmatter: %w", err)
	}
	content := "---\n" + string(fm) + "---\n\n# " + name + "\n"

	p := m.indexPath(folder, name)
	if err := m.vault.Create(p, content); err != nil {
		return "", err
	}
	m.logger.Info("para item created", slog.String("category", string(c)), slog.String("path", p))
	return p, nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("para: empty name: %w", apperr.ErrInvalidInput)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("para: name %q contains a path separator: %w", name, apperr.ErrInvalidInput)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("para: name %q is hidden: %w", name, apperr.ErrInvalidInput)
	}
	return nil
}

// List returns the items of category c ordered by name.
func (m *Manager) List(c Category) ([]models.ParaItem, error) {
	folder, ok := m.cfg.Folders[c]
	if !ok {
		return nil, fmt.Errorf("para: category %q: %w", c, apperr.ErrInvalidInput)
	}
	dirs, err := m.vault.ListDirs(folder)
	if err != nil {
		return nil, err
	}
	items := make([]models.ParaItem, 0, len(dirs))
	for _, d := range dirs {
		item := models.ParaItem{Category: string(c), Name: d, Tags: []string{}}
		p := m.indexPath(folder, d)
		if m.vault.Exists(p) {
			item.Path = p
			m.describe(&item)
		}
		items = append(items, item)
	}
	return items, nil
}

// describe fills title and tags from the index, reading the note when it has
// not been indexed yet.
func (m *Manager) describe(item *models.ParaItem) {
	if row, err := m.vault.Note(item.Path); err == nil {
		item.Title = row.Title
		if row.Tags != nil {
			item.Tags = row.Tags
		}
		return
	}
	content, _, err := m.vault.ReadText(item.Path)
	if err != nil {
		return
	}
	res, err := markdown.Parse([]byte(content))
	if err != nil {
		return
	}
	item.Title = res.Title
	if res.Tags != nil {
		item.Tags = res.Tags
	}
}

// Archive moves the item at p, either its folder or its index note, into the
// archives folder and returns the item's new folder.
func (m *Manager) Archive(p string) (string, error) {
	p = strings.Trim(path.Clean(strings.TrimSpace(p)), "/")
	if strings.HasSuffix(p, ".md") {
		p = path.Dir(p)
	}
	archives := m.cfg.Folders[Archives]
	if p == "." || p == "" {
		return "", fmt.Errorf("para: empty path: %w", apperr.ErrInvalidInput)
	}
	if p == archives || strings.HasPrefix(p, archives+"/") {
		return "", fmt.Errorf("para: %s is already archived: %w", p, apperr.ErrInvalidInput)
	}
	if !m.inCategory(p) {
		return "", fmt.Errorf("para: %s is not a PARA item: %w", p, apperr.ErrInvalidInput)
	}

	dest := path.Join(archives, path.Base(p))
	if err := m.vault.EnsureFolder(archives); err != nil {
		return "", err
	}
	if err := m.vault.Move(p, dest); err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrAlreadyExists) {
			return "", err
		}
		return "", fmt.Errorf("para: archive %s: %w", p, err)
	}
	m.logger.Info("para item archived", slog.String("from", p), slog.String("to", dest))
	return dest, nil
}

// inCategory reports whether p is a direct child of a non-archive category folder.
func (m *Manager) inCategory(p string) bool {
	parent := path.Dir(p)
	for _, c := range []Category{Projects, Areas, Resources} {
		if parent == m.cfg.Folders[c] {
			return true
		}
	}
	return false
}
