package schedule

import "time"

// SlotCandidate is one bookable time published on an expert's booking page.
// Ref is the opaque handle the page driver needs to select it again.
type SlotCandidate struct {
	RawLabel string    `json:"rawLabel"`
	Instant  time.Time `json:"instant"`
	Ref      string    `json:"ref"`
}

// Match is the slot chosen by FindMatchingSlot and the window that accepted it.
type Match struct {
	Slot   SlotCandidate
	Window Window
}

// FindMatchingSlot returns the first slot, in the order the page listed them,
// that falls inside any caller window. Slots are never re-sorted: the page
// order is the expert's priority. Labels are read in expertTZ unless the
// driver already resolved the instant; unreadable labels are skipped.
func FindMatchingSlot(slots []SlotCandidate, windows []Window, expertTZ string) (Match, bool) {
	for _, slot := range slots {
		instant := slot.Instant
		if instant.IsZero() {
			parsed, err := ParseSlotTime(slot.RawLabel, expertTZ)
			if err != nil {
				continue
			}
			instant = parsed
		}
		if w, ok := FirstContainingWindow(instant, windows); ok {
			slot.Instant = instant
			return Match{Slot: slot, Window: w}, true
		}
	}
	return Match{}, false
}
