// Package notify e-mails the caller a summary after each booking run.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/expert-call-booker/internal/booking"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

// Service turns a run outcome into an e-mail to the caller.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender disables e-mail.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// NotifyOutcome sends the run summary to the caller.
func (s *Service) NotifyOutcome(ctx context.Context, caller booking.CallerDetails, req booking.Request, outcome *booking.Outcome) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping run summary")
		return nil
	}
	if outcome == nil || caller.Email == "" {
		return nil
	}
	msg := BuildSummary(caller, req, outcome)
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send run summary: %w", err)
	}
	s.logger.Info("notify: run summary sent", "run_id", outcome.RunID, "to", caller.Email)
	return nil
}

// BuildSummary renders the plain text and HTML summary of a run.
func BuildSummary(caller booking.CallerDetails, req booking.Request, outcome *booking.Outcome) EmailMessage {
	subject := fmt.Sprintf("Booked %d of %d calls: %s", outcome.BookedCount(), req.NumCalls, req.Query())

	var text, page strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nRun %s searched for %q and booked %d of %d requested calls.\n",
		caller.Name, outcome.RunID, req.Query(), outcome.BookedCount(), req.NumCalls)
	fmt.Fprintf(&page, "<p>Hi %s,</p><p>Run <code>%s</code> searched for <b>%s</b> and booked %d of %d requested calls.</p>",
		html.EscapeString(caller.Name), html.EscapeString(outcome.RunID), html.EscapeString(req.Query()),
		outcome.BookedCount(), req.NumCalls)

	if len(outcome.Booked) > 0 {
		text.WriteString("\nBooked:\n")
		page.WriteString("<h3>Booked</h3><ul>")
		for _, r := range outcome.Booked {
			when := r.SlotLocal.Format("Mon Jan 2 2006 15:04 MST")
			price := "free"
			if r.Price > 0 {
				price = fmt.Sprintf("%.2f %s", r.Price, r.Currency)
			}
			fmt.Fprintf(&text, "- %s (%s): %s on %s, %s\n  %s\n", r.ExpertName, r.ExpertUsername, r.ServiceTitle, when, price, r.ConfirmationURL)
			fmt.Fprintf(&page, `<li>%s (%s): %s on %s, %s <a href="%s">confirmation</a></li>`,
				html.EscapeString(r.ExpertName), html.EscapeString(r.ExpertUsername), html.EscapeString(r.ServiceTitle),
				html.EscapeString(when), html.EscapeString(price), html.EscapeString(r.ConfirmationURL))
		}
		page.WriteString("</ul>")
	}

	if len(outcome.Skipped) > 0 {
		text.WriteString("\nSkipped:\n")
		page.WriteString("<h3>Skipped</h3><ul>")
		for _, sk := range outcome.Skipped {
			fmt.Fprintf(&text, "- %s: %s\n", sk.Username, sk.Reason)
			fmt.Fprintf(&page, "<li>%s: %s</li>", html.EscapeString(sk.Username), html.EscapeString(string(sk.Reason)))
		}
		page.WriteString("</ul>")
	}

	fmt.Fprintf(&text, "\nSent %s\n", time.Now().UTC().Format(time.RFC1123))
	return EmailMessage{
		To:      caller.Email,
		ToName:  caller.Name,
		Subject: subject,
		Body:    text.String(),
		HTML:    page.String(),
	}
}

// Multi fans an outcome out to several notifiers and joins their errors.
type Multi []booking.Notifier

// NotifyOutcome calls every notifier even when an earlier one fails.
func (m Multi) NotifyOutcome(ctx context.Context, caller booking.CallerDetails, req booking.Request, outcome *booking.Outcome) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyOutcome(ctx, caller, req, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ booking.Notifier = (*Service)(nil)
	_ booking.Notifier = Multi(nil)
)
