package schedule

import (
	"fmt"
	"strings"
	"time"
)

// layouts with an explicit offset; the offset wins over the expert timezone.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04-07:00",
}

// naive layouts are read on the expert's wall clock.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 3 PM",
	"Mon, Jan 2 2006 3:04 PM",
	"Mon, Jan 2, 2006 3:04 PM",
	"Monday, January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
}

// ExpertLocation returns the location for an expert-published timezone, falling
// back to UTC when it is empty or unknown. Expert data comes from the
// marketplace, so a bad value degrades instead of failing the candidate.
func ExpertLocation(timezone string) *time.Location {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseSlotTime resolves a slot label published by a booking page into an
// absolute instant. Labels without an offset are interpreted in expertTZ.
func ParseSlotTime(raw string, expertTZ string) (time.Time, error) {
	label := normalizeLabel(raw)
	loc := ExpertLocation(expertTZ)

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, label, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse slot time %q", raw)
}

func normalizeLabel(raw string) string {
	label := strings.Join(strings.Fields(raw), " ")
	label = strings.ReplaceAll(label, "a.m.", "AM")
	label = strings.ReplaceAll(label, "p.m.", "PM")
	if n := len(label); n >= 2 {
		suffix := strings.ToUpper(label[n-2:])
		if suffix == "AM" || suffix == "PM" {
			label = label[:n-2] + suffix
		}
	}
	return label
}
