package schedule

import (
	"fmt"
	"strings"
	"time"
)

// LoadLocation resolves an IANA timezone name. Unlike time.LoadLocation it
// rejects the empty string and "Local", which would silently mean UTC or the
// host zone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

// ConvertToTimezone returns instant on the wall clock of targetTZ.
func ConvertToTimezone(instant time.Time, targetTZ string) (time.Time, error) {
	loc, err := LoadLocation(targetTZ)
	if err != nil {
		return time.Time{}, err
	}
	return instant.In(loc), nil
}

// IsInstantWithinAnyWindow reports whether instant falls inside at least one window.
func IsInstantWithinAnyWindow(instant time.Time, windows []Window) bool {
	_, ok := FirstContainingWindow(instant, windows)
	return ok
}

// FirstContainingWindow returns the first window (in list order) containing instant.
func FirstContainingWindow(instant time.Time, windows []Window) (Window, bool) {
	for _, w := range windows {
		if w.Contains(instant) {
			return w, true
		}
	}
	return Window{}, false
}
