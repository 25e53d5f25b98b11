package dailyrecord

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/almanac/internal/memos"
)

// Marker tags every list item written from a remote record.
const Marker = "#daily-record"

var (
	taskHeadRe  = regexp.MustCompile(`^[-*+] \[(.)\] ?(.*)$`)
	fenceHeadRe = regexp.MustCompile("^(```|~~~)")
	unsafeName  = strings.NewReplacer(
		"/", "-", `\`, "-", "?", "-", "%", "-", "*", "-",
		":", "-", "|", "-", `"`, "-", "<", "-", ">", "-",
	)
)

// SanitizeFilename replaces characters that are not allowed in vault file names.
func SanitizeFilename(name string) string {
	return unsafeName.Replace(name)
}

// AttachmentName is the local file name of an attachment.
func AttachmentName(a memos.Attachment) string {
	return a.ID + "-" + SanitizeFilename(a.Filename)
}

// Key is the timeline key of a record: its creation time in Unix seconds.
func Key(r memos.Record) int64 {
	return r.CreatedAt.Unix()
}

// Format renders a record as one list item: "- HH:MM text #daily-record ^unix".
// A task-shaped first line stays a task, a fenced first line moves the whole
// body into the nested block, further lines are tab-indented with blank lines
// dropped, and attachments follow as embeds.
func Format(r memos.Record, loc *time.Location) string {
	hhmm := r.CreatedAt.In(loc).Format("15:04")
	anchor := Marker + " ^" + strconv.FormatInt(Key(r), 10)

	lines := strings.Split(strings.ReplaceAll(strings.TrimRight(r.Content, " \t\r\n"), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	var head string
	var rest []string
	switch {
	case len(lines) == 0:
		head = "- " + hhmm + " " + anchor
	case fenceHeadRe.MatchString(lines[0]):
		head = "- " + hhmm + " " + anchor
		rest = lines
	case taskHeadRe.MatchString(lines[0]):
		m := taskHeadRe.FindStringSubmatch(lines[0])
		head = "- [" + m[1] + "] " + joinNonEmpty(hhmm, m[2], anchor)
		rest = lines[1:]
	default:
		head = "- " + joinNonEmpty(hhmm, strings.TrimSpace(lines[0]), anchor)
		rest = lines[1:]
	}

	var b strings.Builder
	b.WriteString(head)
	for _, l := range rest {
		if strings.TrimSpace(l) == "" {
			continue
		}
		b.WriteString("\n\t")
		b.WriteString(l)
	}
	for _, a := range r.Attachments {
		b.WriteString("\n\t- ")
		if a.ExternalLink != "" {
			b.WriteString("![](" + a.ExternalLink + ")")
		} else {
			b.WriteString("![[" + AttachmentName(a) + "]]")
		}
	}
	return b.String()
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
