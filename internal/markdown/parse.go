// Package markdown reads the subset of Markdown the vault relies on:
// YAML frontmatter, wikilinks, tags, headers, list items and tasks.
package markdown

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe  = regexp.MustCompile(`\[\[(.*?)\]\]`)
	inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Result is what the index needs to know about a note.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse never fails on malformed input: a bad frontmatter block is treated
// as body text.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(string(data))
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       Links(body),
		Tags:        tags(fm, body),
		Title:       title(fm, body),
	}, nil
}

// splitFrontmatter cuts a leading "---" YAML block off the note.
func splitFrontmatter(note string) (map[string]any, string) {
	rest, ok := strings.CutPrefix(strings.TrimLeft(note, "\r\n"), "---")
	if !ok {
		return nil, note
	}
	block, after, ok := strings.Cut(rest, "\n---")
	if !ok {
		return nil, note
	}
	var fm map[string]any
	if yaml.Unmarshal([]byte(block), &fm) != nil {
		return nil, note
	}
	return fm, strings.TrimLeft(after, "\r\n")
}

// orderedSet keeps first-seen order and drops blanks and repeats.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

// Links returns the distinct wikilink targets of body in order. Aliases
// ([[2024-03-15|Friday]]) and anchors ([[2024-W11#Review]], [[x^block]])
// are cut off.
func Links(body string) []string {
	var set orderedSet
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.IndexAny(target, "|#^"); i >= 0 {
			target = target[:i]
		}
		set.add(strings.TrimSpace(target))
	}
	return set.items
}

// tags merges the frontmatter "tags" field with inline #tags, frontmatter
// first. The field may be a YAML list or a comma or space separated string.
func tags(fm map[string]any, body string) []string {
	var set orderedSet
	norm := func(s string) string {
		return strings.TrimPrefix(strings.TrimSpace(s), "#")
	}
	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				set.add(norm(s))
			}
		}
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			set.add(norm(s))
		}
	}
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		set.add(m[1])
	}
	return set.items
}

// title prefers the frontmatter title, then the first H1.
func title(fm map[string]any, body string) string {
	if s, _ := fm["title"].(string); s != "" {
		return s
	}
	for line := range strings.Lines(body) {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
