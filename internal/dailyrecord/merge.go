package dailyrecord

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/almanac/internal/markdown"
)

var (
	remoteTagRe = regexp.MustCompile(`\^(\d{10})\b`)
	localTimeRe = regexp.MustCompile(`^(?:[-*+]|\d+[.)]) (\[.\] )?(\d{1,2}):(\d{2})`)
)

// ItemKind classifies an existing list item of a daily-record section.
type ItemKind int

const (
	// Untimed items keep their place ahead of the timeline.
	Untimed ItemKind = iota
	// RemoteTagged items carry a "^<unix>" anchor from an earlier sync.
	RemoteTagged
	// LocallyTimed items start with "HH:MM" typed by hand.
	LocallyTimed
)

// Classify returns the kind of item and, for timed items, its timeline key.
// day supplies the date and location that a local HH:MM is read in.
func Classify(item string, day time.Time) (ItemKind, int64) {
	first, _, _ := strings.Cut(item, "\n")
	if m := remoteTagRe.FindStringSubmatch(first); m != nil {
		key, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return RemoteTagged, key
		}
	}
	if m := localTimeRe.FindStringSubmatch(first); m != nil {
		h, _ := strconv.Atoi(m[2])
		mi, _ := strconv.Atoi(m[3])
		if h < 24 && mi < 60 {
			t := time.Date(day.Year(), day.Month(), day.Day(), h, mi, 0, 0, day.Location())
			return LocallyTimed, t.Unix()
		}
	}
	return Untimed, 0
}

// Merge rebuilds the content of a day's section from its existing items and
// the fetched records, keyed by creation time. Untimed items come first in
// their original order, followed by the timeline ascending by key. A fetched
// record replaces an existing item with the same key; a locally timed item
// whose key is taken moves to the next free second.
func Merge(section string, day time.Time, fetched map[int64]string) string {
	var (
		untimed  []string
		local    []string
		localKey []int64
	)
	timeline := make(map[int64]string)

	for _, item := range markdown.SplitItems(section) {
		kind, key := Classify(item, day)
		switch kind {
		case RemoteTagged:
			timeline[key] = item
		case LocallyTimed:
			local = append(local, item)
			localKey = append(localKey, key)
		default:
			untimed = append(untimed, item)
		}
	}
	for key, item := range fetched {
		timeline[key] = item
	}
	for i, item := range local {
		key := localKey[i]
		for {
			if _, taken := timeline[key]; !taken {
				break
			}
			key++
		}
		timeline[key] = item
	}

	keys := make([]int64, 0, len(timeline))
	for k := range timeline {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := untimed
	for _, k := range keys {
		out = append(out, timeline[k])
	}
	return strings.Join(out, "\n")
}
