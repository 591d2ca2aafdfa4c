// Package schedule resolves caller availability windows against expert slots.
// Everything here is pure computation over the IANA timezone database.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidTimeOfDay is returned for time-of-day strings that are not HH:MM.
	ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM")
	// ErrInvalidWeekday is returned for unrecognised day names.
	ErrInvalidWeekday = errors.New("unknown day of week")
	// ErrEmptyWindow is returned when a window does not start before it ends.
	ErrEmptyWindow = errors.New("window start must be before end")
	// ErrNoDays is returned for a window without any day of week.
	ErrNoDays = errors.New("window must name at least one day")
	// ErrUnknownTimezone is returned for names missing from the timezone database.
	ErrUnknownTimezone = errors.New("unknown timezone")
)

// TimeOfDay is a wall-clock time as minutes after midnight. 24:00 is allowed so
// a window can run to the end of the day.
type TimeOfDay int

const endOfDay TimeOfDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// String formats the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// WeekdaySet is a set of days of the week.
type WeekdaySet uint8

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// NewWeekdaySet builds a set from days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// ParseWeekdaySet parses day names such as "Mon" or "monday".
func ParseWeekdaySet(names []string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, name := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
		}
		s = s.With(d)
	}
	return s, nil
}

// With returns the set plus d.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	return s | 1<<uint(d)
}

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Empty reports whether the set has no days.
func (s WeekdaySet) Empty() bool {
	return s == 0
}

// Days lists the set in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

// Window is a recurring weekly availability range [Start, End) in Timezone.
// Windows crossing midnight are not supported.
type Window struct {
	Days     WeekdaySet
	Start    TimeOfDay
	End      TimeOfDay
	Timezone string
}

// WindowSpec is the wire form of a Window.
type WindowSpec struct {
	Days     []string `json:"days"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Timezone string   `json:"timezone"`
}

// ParseWindow converts and validates a WindowSpec.
func ParseWindow(spec WindowSpec) (Window, error) {
	days, err := ParseWeekdaySet(spec.Days)
	if err != nil {
		return Window{}, err
	}
	start, err := ParseTimeOfDay(spec.Start)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTimeOfDay(spec.End)
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	w := Window{Days: days, Start: start, End: end, Timezone: strings.TrimSpace(spec.Timezone)}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Spec returns the wire form of w.
func (w Window) Spec() WindowSpec {
	days := w.Days.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return WindowSpec{Days: names, Start: w.Start.String(), End: w.End.String(), Timezone: w.Timezone}
}

// Validate rejects windows that can never match.
func (w Window) Validate() error {
	if w.Days.Empty() {
		return ErrNoDays
	}
	if w.Start < 0 || w.End > endOfDay || w.Start >= w.End {
		return fmt.Errorf("%w: %s-%s", ErrEmptyWindow, w.Start, w.End)
	}
	if _, err := LoadLocation(w.Timezone); err != nil {
		return err
	}
	return nil
}

// Contains reports whether instant falls inside the window, evaluated on the
// wall clock of the window's own timezone. Invalid windows contain nothing.
func (w Window) Contains(instant time.Time) bool {
	if w.Validate() != nil {
		return false
	}
	loc, _ := LoadLocation(w.Timezone)
	local := instant.In(loc)
	if !w.Days.Has(local.Weekday()) {
		return false
	}
	secs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return secs >= int(w.Start)*60 && secs < int(w.End)*60
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s %s", w.Days, w.Start, w.End, w.Timezone)
}
