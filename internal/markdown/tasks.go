package markdown

import (
	"regexp"
	"strings"
)

var taskRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[(.)\]\s+(.*)$`)

// TaskItem is a checkbox list item. Line is 1-based within the scanned text.
type TaskItem struct {
	Text string
	Done bool
	Line int
}

// Tasks returns every checkbox list item in text, nested ones included.
// Any non-blank status character other than a space counts as done.
func Tasks(text string) []TaskItem {
	var out []TaskItem
	for i, l := range Tokenize(text) {
		m := taskRe.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		out = append(out, TaskItem{
			Text: strings.TrimSpace(m[2]),
			Done: m[1] != " ",
			Line: i + 1,
		})
	}
	return out
}
