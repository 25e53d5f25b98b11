package period

import (
	"fmt"
	"time"
)

// Locator finds a note by link within folder.
type Locator interface {
	Locate(link, folder string) (string, bool, error)
}

// Resolver computes ranges in a fixed location and finds related notes under
// a periodic-notes folder.
type Resolver struct {
	loc     *time.Location
	folder  string
	locator Locator
}

// NewResolver creates a Resolver. A nil loc means time.Local; a nil locator
// makes Related always empty.
func NewResolver(loc *time.Location, folder string, locator Locator) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{loc: loc, folder: folder, locator: locator}
}

// Location returns the resolver's time zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Range returns the inclusive day range of p. The first set field in the
// order day, week, month, quarter, year decides the tier; when that tier has
// no year (or no month, for a day) the range is empty.
func (r *Resolver) Range(p Period) DateRange {
	if p.Year == nil {
		return DateRange{}
	}
	y := *p.Year

	switch p.Kind() {
	case Day:
		if p.Month == nil {
			return DateRange{}
		}
		d := time.Date(y, time.Month(*p.Month), *p.Day, 0, 0, 0, 0, r.loc)
		// 2024-02-30 normalises into March; treat it as unresolvable.
		if d.Day() != *p.Day || int(d.Month()) != *p.Month {
			return DateRange{}
		}
		return DateRange{From: d, To: d}
	case Week:
		from, ok := isoWeekStart(y, *p.Week, r.loc)
		if !ok {
			return DateRange{}
		}
		return DateRange{From: from, To: from.AddDate(0, 0, 6)}
	case Month:
		from := time.Date(y, time.Month(*p.Month), 1, 0, 0, 0, 0, r.loc)
		return DateRange{From: from, To: from.AddDate(0, 1, -1)}
	case Quarter:
		from := time.Date(y, time.Month((*p.Quarter-1)*3+1), 1, 0, 0, 0, 0, r.loc)
		return DateRange{From: from, To: from.AddDate(0, 3, -1)}
	case Year:
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, r.loc)
		return DateRange{From: from, To: from.AddDate(1, 0, -1)}
	}
	return DateRange{}
}

// isoWeekStart returns the Monday of ISO week w in ISO year y. Week 53 only
// exists in long years.
func isoWeekStart(y, w int, loc *time.Location) (time.Time, bool) {
	jan4 := time.Date(y, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, -offset+(w-1)*7)
	if _, got := start.ISOWeek(); got != w {
		return time.Time{}, false
	}
	return start, true
}

// Link returns the note name of the kind-period that contains t.
func Link(k Kind, t time.Time) string {
	switch k {
	case Day:
		return t.Format(time.DateOnly)
	case Week:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Month:
		return t.Format("2006-01")
	case Quarter:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case Year:
		return t.Format("2006")
	}
	return ""
}

// Ref is a related note: its period name and vault path.
type Ref struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Related holds the existing notes of the next finer tier inside a range.
// At most one of the slices is populated.
type Related struct {
	Quarters []Ref `json:"quarters"`
	Months   []Ref `json:"months"`
	Weeks    []Ref `json:"weeks"`
	Days     []Ref `json:"days"`
}

// finer maps a period kind to the tier collected by Related.
var finer = map[Kind]Kind{
	Year:    Quarter,
	Quarter: Month,
	Month:   Week,
	Week:    Day,
}

// Related walks every day of Range(p) and collects the notes of the next
// finer tier that exist, in calendar order without duplicates. Lookup
// failures count as missing notes.
func (r *Resolver) Related(p Period) Related {
	var out Related
	tier, ok := finer[p.Kind()]
	if !ok || r.locator == nil {
		return out
	}

	seen := make(map[string]bool)
	var refs []Ref
	for _, d := range r.Range(p).Days() {
		name := Link(tier, d)
		if seen[name] {
			continue
		}
		seen[name] = true
		path, found, err := r.locator.Locate(name, r.folder)
		if err != nil || !found {
			continue
		}
		refs = append(refs, Ref{Name: name, Path: path})
	}

	switch tier {
	case Quarter:
		out.Quarters = refs
	case Month:
		out.Months = refs
	case Week:
		out.Weeks = refs
	case Day:
		out.Days = refs
	}
	return out
}

// Resolution is the full answer for one file name.
type Resolution struct {
	Period  Period    `json:"period"`
	Kind    Kind      `json:"kind"`
	Range   DateRange `json:"range"`
	Related Related   `json:"related"`
}

// Resolve parses filename and computes its range and related notes.
func (r *Resolver) Resolve(filename string) Resolution {
	p := Parse(filename)
	return Resolution{
		Period:  p,
		Kind:    p.Kind(),
		Range:   r.Range(p),
		Related: r.Related(p),
	}
}
