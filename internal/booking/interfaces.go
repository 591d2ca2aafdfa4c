// Package booking drives the search → qualify → slot match → book pipeline
// across marketplace experts. Browser and API access are collaborators behind
// the interfaces in this file so the pipeline can run against fakes.
package booking

import (
	"context"

	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
)

// SearchProvider finds candidate experts for a free-text query.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]experts.CandidateIdentity, error)
}

// ProfileProvider fetches an expert profile with its services.
// A nil profile with a nil error is treated as not found.
type ProfileProvider interface {
	FetchProfile(ctx context.Context, username string) (*experts.Profile, error)
}

// BookingPageDriver walks an expert's booking flow on the current page.
type BookingPageDriver interface {
	OpenService(ctx context.Context, username, serviceID string) error
	ListSlots(ctx context.Context) ([]schedule.SlotCandidate, error)
	SelectSlot(ctx context.Context, ref string) error
	SubmitBookingForm(ctx context.Context, caller CallerDetails) (*Confirmation, error)
}

// Session is one stateful browser session, owned by a single run.
type Session interface {
	SearchProvider
	BookingPageDriver
	Close() error
}

// SessionOpener starts a new Session at the beginning of a run.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// CallerDetails identifies the person the calls are booked for.
type CallerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Confirmation is what the booking page shows after a successful submit.
type Confirmation struct {
	URL  string
	Text string
}

// RunLocker prevents overlapping runs for the same caller.
type RunLocker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Notifier reports a finished run, typically by e-mail to the caller.
type Notifier interface {
	NotifyOutcome(ctx context.Context, caller CallerDetails, req Request, outcome *Outcome) error
}
