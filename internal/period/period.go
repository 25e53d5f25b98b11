// Package period maps periodic-note file names to calendar periods and
// inclusive date ranges, and finds the notes of the next finer tier that
// fall inside a period.
package period

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the granularity of a periodic note.
type Kind int

const (
	None Kind = iota
	Day
	Week
	Month
	Quarter
	Year
)

var kindNames = map[Kind]string{
	None:    "none",
	Day:     "day",
	Week:    "week",
	Month:   "month",
	Quarter: "quarter",
	Year:    "year",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKind accepts "day", "daily", "week", "weekly" and so on.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "month", "monthly":
		return Month, nil
	case "quarter", "quarterly":
		return Quarter, nil
	case "year", "yearly":
		return Year, nil
	}
	return None, fmt.Errorf("period: unknown kind %q", s)
}

// Period is the calendar position encoded in a file name. A nil field was
// not present in the name; zero is never used as "unset".
type Period struct {
	Year    *int `json:"year"`
	Quarter *int `json:"quarter"`
	Month   *int `json:"month"`
	Week    *int `json:"week"`
	Day     *int `json:"day"`
}

var (
	yearRe    = regexp.MustCompile(`^(\d{4})`)
	quarterRe = regexp.MustCompile(`^(?:\d{4}-)?Q([1-4])`)
	monthRe   = regexp.MustCompile(`^\d{4}-(\d{2})`)
	weekRe    = regexp.MustCompile(`^(?:\d{4}-)?W(\d{1,2})`)
	dayRe     = regexp.MustCompile(`^\d{4}-\d{2}-(\d{2})`)
)

// Parse applies the year, quarter, month, week and day patterns to the base
// name of filename independently and keeps every field that matched with an
// in-range value. A name that matches nothing yields an all-nil Period.
func Parse(filename string) Period {
	name := strings.TrimSuffix(path.Base(strings.ReplaceAll(filename, `\`, "/")), ".md")

	var p Period
	p.Year = match(yearRe, name, 1, 9999)
	p.Quarter = match(quarterRe, name, 1, 4)
	p.Month = match(monthRe, name, 1, 12)
	p.Week = match(weekRe, name, 1, 53)
	p.Day = match(dayRe, name, 1, 31)
	return p
}

func match(re *regexp.Regexp, name string, lo, hi int) *int {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < lo || v > hi {
		return nil
	}
	return &v
}

// Kind reports the tier the period resolves at, using the same precedence as
// Range: day, week, month, quarter, year.
func (p Period) Kind() Kind {
	switch {
	case p.Day != nil:
		return Day
	case p.Week != nil:
		return Week
	case p.Month != nil:
		return Month
	case p.Quarter != nil:
		return Quarter
	case p.Year != nil:
		return Year
	}
	return None
}

// DateRange is an inclusive range of calendar days. Both ends are zero when
// the range could not be resolved.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Empty reports whether the range is unresolved.
func (r DateRange) Empty() bool {
	return r.From.IsZero() || r.To.IsZero()
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.Empty() {
		return false
	}
	d := truncateDay(t.In(r.From.Location()))
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns every day of the range in order.
func (r DateRange) Days() []time.Time {
	if r.Empty() {
		return nil
	}
	var out []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// MarshalJSON renders the ends as YYYY-MM-DD or null.
func (r DateRange) MarshalJSON() ([]byte, error) {
	type wire struct {
		From *string `json:"from"`
		To   *string `json:"to"`
	}
	var w wire
	if !r.Empty() {
		from, to := r.From.Format(time.DateOnly), r.To.Format(time.DateOnly)
		w.From, w.To = &from, &to
	}
	return json.Marshal(w)
}

// NewRange builds a range from two dates, truncated to days in loc. Reversed
// ends are swapped.
func NewRange(from, to time.Time, loc *time.Location) DateRange {
	f, t := truncateDay(from.In(loc)), truncateDay(to.In(loc))
	if t.Before(f) {
		f, t = t, f
	}
	return DateRange{From: f, To: t}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
