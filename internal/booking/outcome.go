package booking

import (
	"time"

	"github.com/wolfman30/expert-call-booker/internal/qualify"
)

// SkipReason explains why a candidate did not produce a booking.
type SkipReason string

const (
	SkipProfileFetchFailed      SkipReason = "profile fetch failed"
	SkipCriteriaMismatch        SkipReason = SkipReason(qualify.ReasonCriteriaMismatch)
	SkipNoAffordableLiveService SkipReason = SkipReason(qualify.ReasonNoAffordableLiveService)
	SkipBookingPageError        SkipReason = "booking page error"
	SkipNoSlotInAvailability    SkipReason = "no slot in availability"
	SkipSubmissionFailed        SkipReason = "submission failed"
)

// Skip records a candidate that was passed over; the run continues.
type Skip struct {
	Username string     `json:"username"`
	Reason   SkipReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

// Record is one booked call.
type Record struct {
	ExpertUsername  string    `json:"expertUsername"`
	ExpertName      string    `json:"expertName"`
	ExpertTitle     string    `json:"expertTitle"`
	ServiceID       string    `json:"serviceId"`
	ServiceTitle    string    `json:"serviceTitle"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency"`
	SlotLocal       time.Time `json:"slotLocal"`
	SlotUTC         time.Time `json:"slotUtc"`
	CallerTimezone  string    `json:"callerTimezone"`
	ProfileURL      string    `json:"profileUrl"`
	ConfirmationURL string    `json:"bookingConfirmationUrl"`
}

// Outcome is everything a run accumulated. Partial success is a normal outcome.
type Outcome struct {
	RunID   string   `json:"runId"`
	Booked  []Record `json:"bookings"`
	Skipped []Skip   `json:"skipped"`
}

// BookedCount is the number of calls booked.
func (o *Outcome) BookedCount() int {
	if o == nil {
		return 0
	}
	return len(o.Booked)
}

func (o *Outcome) skip(username string, reason SkipReason, detail string) {
	o.Skipped = append(o.Skipped, Skip{Username: username, Reason: reason, Detail: detail})
}
