package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/expert-call-booker/internal/booking"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

type recordingSender struct {
	msgs []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func summaryFixture(t *testing.T) (booking.CallerDetails, booking.Request, *booking.Outcome) {
	t.Helper()
	req, err := booking.RunInput{
		TargetCompany: "Acme",
		TargetRole:    "Designer",
		NumCalls:      2,
		Availability:  []schedule.WindowSpec{{Days: []string{"Mon"}, Start: "09:00", End: "17:00", Timezone: "UTC"}},
	}.Parse()
	require.NoError(t, err)

	slot := time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)
	outcome := &booking.Outcome{
		RunID: "run-42",
		Booked: []booking.Record{{
			ExpertUsername:  "jane",
			ExpertName:      "Jane <Doe>",
			ServiceTitle:    "Intro call",
			SlotLocal:       slot,
			SlotUTC:         slot,
			ConfirmationURL: "https://marketplace.test/confirm/1",
		}},
		Skipped: []booking.Skip{{Username: "bob", Reason: booking.SkipNoSlotInAvailability}},
	}
	return booking.CallerDetails{Name: "Sam", Email: "sam@example.com"}, req, outcome
}

func TestBuildSummary(t *testing.T) {
	caller, req, outcome := summaryFixture(t)
	msg := BuildSummary(caller, req, outcome)

	assert.Equal(t, "sam@example.com", msg.To)
	assert.Equal(t, "Booked 1 of 2 calls: Acme Designer", msg.Subject)
	assert.Contains(t, msg.Body, "Jane <Doe> (jane): Intro call on Mon Oct 19 2026 14:30 UTC, free")
	assert.Contains(t, msg.Body, "- bob: no slot in availability")
	assert.Contains(t, msg.HTML, "Jane &lt;Doe&gt;")
	assert.False(t, strings.Contains(msg.HTML, "<Doe>"))
}

func TestServiceNotifyOutcome(t *testing.T) {
	caller, req, outcome := summaryFixture(t)
	sender := &recordingSender{}

	require.NoError(t, NewService(sender, logging.Discard()).NotifyOutcome(context.Background(), caller, req, outcome))
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, "Sam", sender.msgs[0].ToName)
}

func TestServiceNotifyOutcomeWithoutSender(t *testing.T) {
	caller, req, outcome := summaryFixture(t)
	assert.NoError(t, NewService(nil, nil).NotifyOutcome(context.Background(), caller, req, outcome))
}

func TestServiceNotifyOutcomeSendError(t *testing.T) {
	caller, req, outcome := summaryFixture(t)
	sender := &recordingSender{err: errors.New("quota exceeded")}
	err := NewService(sender, logging.Discard()).NotifyOutcome(context.Background(), caller, req, outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestMultiCallsEveryNotifier(t *testing.T) {
	caller, req, outcome := summaryFixture(t)
	failing := NewService(&recordingSender{err: errors.New("down")}, logging.Discard())
	ok := &recordingSender{}

	err := Multi{failing, nil, NewService(ok, logging.Discard())}.NotifyOutcome(context.Background(), caller, req, outcome)
	require.Error(t, err)
	assert.Len(t, ok.msgs, 1)
}
