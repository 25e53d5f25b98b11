package markdown

import (
	"regexp"
	"strings"
)

// LineKind classifies one line of a Markdown document.
type LineKind int

const (
	LineBlank LineKind = iota
	LineHeader
	LineItem         // top-level list item start ("- ", "* ", "+ ", "1. ")
	LineContinuation // indented line, part of the preceding block
	LineText
)

var (
	headerRe = regexp.MustCompile(`^(#{1,6})(?:\s+|$)`)
	itemRe   = regexp.MustCompile(`^(?:[-*+]|\d+[.)])(?:\s|$)`)
	fenceRe  = regexp.MustCompile("^\\s*(```|~~~)")
)

// Line is a tokenized line. Start and End are byte offsets into the source,
// End excludes the line break; Next is the offset of the following line.
type Line struct {
	Kind  LineKind
	Level int
	Text  string
	Start int
	End   int
	Next  int
}

// Tokenize splits text into classified lines. Header markers inside fenced
// code blocks are not treated as headers.
func Tokenize(text string) []Line {
	var lines []Line
	inFence := false
	pos := 0
	for pos < len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		next := len(text)
		if end < 0 {
			end = len(text)
		} else {
			end += pos
			next = end + 1
		}
		raw := strings.TrimSuffix(text[pos:end], "\r")
		l := Line{Text: raw, Start: pos, End: end, Next: next}

		switch {
		case fenceRe.MatchString(raw):
			inFence = !inFence
			l.Kind = classifyPlain(raw)
		case inFence:
			l.Kind = classifyPlain(raw)
			if l.Kind != LineBlank {
				l.Kind = LineContinuation
			}
		case headerRe.MatchString(raw):
			l.Kind = LineHeader
			l.Level = len(headerRe.FindStringSubmatch(raw)[1])
		case itemRe.MatchString(raw):
			l.Kind = LineItem
		default:
			l.Kind = classifyPlain(raw)
		}
		lines = append(lines, l)
		pos = next
	}
	return lines
}

func classifyPlain(raw string) LineKind {
	switch {
	case strings.TrimSpace(raw) == "":
		return LineBlank
	case raw[0] == ' ' || raw[0] == '\t':
		return LineContinuation
	default:
		return LineText
	}
}

// Section locates the body of a header: everything after the header line up
// to the next header of the same or higher level.
type Section struct {
	Header    string
	Level     int
	BodyStart int
	BodyEnd   int
	// headerEOF is set when the header is the last line and has no line break.
	headerEOF bool
}

// Body returns the section text within doc.
func (s Section) Body(doc string) string {
	return doc[s.BodyStart:s.BodyEnd]
}

// HeaderLevel returns the number of leading '#' in header, or 0 when header
// is not an ATX heading.
func HeaderLevel(header string) int {
	m := headerRe.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return 0
	}
	return len(m[1])
}

// FindSection returns the first section whose header line equals header or
// starts with header followed by a space.
func FindSection(doc, header string) (Section, bool) {
	header = strings.TrimSpace(header)
	level := HeaderLevel(header)
	if level == 0 {
		return Section{}, false
	}
	lines := Tokenize(doc)
	for i, l := range lines {
		if l.Kind != LineHeader || l.Level != level {
			continue
		}
		text := strings.TrimSpace(l.Text)
		if text != header && !strings.HasPrefix(text, header+" ") {
			continue
		}
		sec := Section{
			Header:    text,
			Level:     level,
			BodyStart: l.Next,
			BodyEnd:   len(doc),
			headerEOF: l.End == len(doc),
		}
		for _, n := range lines[i+1:] {
			if n.Kind == LineHeader && n.Level <= level {
				sec.BodyEnd = n.Start
				break
			}
		}
		return sec, true
	}
	return Section{}, false
}

// ReplaceSection swaps the content of sec for content, keeping the blank
// lines that surrounded the old content and everything outside the section
// byte range verbatim.
func ReplaceSection(doc string, sec Section, content string) string {
	content = strings.Trim(content, "\n")
	if sec.headerEOF {
		if content == "" {
			return doc
		}
		return doc + "\n" + content + "\n"
	}

	body := doc[sec.BodyStart:sec.BodyEnd]
	var b strings.Builder
	b.Grow(len(doc) + len(content))
	b.WriteString(doc[:sec.BodyStart])

	if strings.TrimSpace(body) == "" {
		if content != "" {
			b.WriteString(content)
			b.WriteString("\n")
		}
		b.WriteString(body)
	} else {
		lead := body[:len(body)-len(strings.TrimLeft(body, "\r\n"))]
		trail := body[len(strings.TrimRight(body, " \t\r\n")):]
		if i := strings.IndexByte(trail, '\n'); i >= 0 {
			trail = trail[i:]
		} else {
			trail = ""
		}
		b.WriteString(lead)
		b.WriteString(content)
		b.WriteString(trail)
	}

	b.WriteString(doc[sec.BodyEnd:])
	return b.String()
}

// SplitItems splits section content into top-level list items. Indented and
// lazy continuation lines stay attached to their item; lines before the first
// item form a chunk of their own. Trailing blank lines of each chunk are
// dropped and empty chunks are skipped.
func SplitItems(content string) []string {
	var (
		out   []string
		chunk []string
	)
	flush := func() {
		for len(chunk) > 0 && strings.TrimSpace(chunk[len(chunk)-1]) == "" {
			chunk = chunk[:len(chunk)-1]
		}
		if len(chunk) > 0 {
			out = append(out, strings.Join(chunk, "\n"))
		}
		chunk = nil
	}
	for _, l := range Tokenize(content) {
		if l.Kind == LineItem {
			flush()
		}
		if l.Kind == LineBlank && len(chunk) == 0 {
			continue
		}
		chunk = append(chunk, l.Text)
	}
	flush()
	return out
}
