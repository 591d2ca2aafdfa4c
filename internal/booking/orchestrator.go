package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/internal/observability/metrics"
	"github.com/wolfman30/expert-call-booker/internal/qualify"
	"github.com/wolfman30/expert-call-booker/internal/runlock"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

var bookingTracer = otel.Tracer("callbooker.internal.booking")

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultAPITimeout        = 10 * time.Second
)

// Config is the static configuration of an Orchestrator.
type Config struct {
	Caller            CallerDetails
	NavigationTimeout time.Duration
	APITimeout        time.Duration
}

// Orchestrator runs the search → qualify → slot match → book pipeline.
// Candidates are processed one at a time on a single session.
type Orchestrator struct {
	cfg      Config
	sessions SessionOpener
	profiles ProfileProvider
	engine   *qualify.Engine
	locker   RunLocker
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	newRunID func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRunLocker rejects overlapping runs for the same caller.
func WithRunLocker(locker RunLocker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

// WithNotifier reports every completed run.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithMetrics records run, candidate and step metrics.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEngine replaces the default qualification engine.
func WithEngine(e *qualify.Engine) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newRunID = fn
		}
	}
}

// NewOrchestrator wires an orchestrator. sessions and profiles are required.
func NewOrchestrator(cfg Config, sessions SessionOpener, profiles ProfileProvider, opts ...Option) *Orchestrator {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = defaultAPITimeout
	}
	o := &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		profiles: profiles,
		engine:   qualify.NewEngine(nil),
		logger:   logging.Default(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Caller returns the configured caller identity.
func (o *Orchestrator) Caller() CallerDetails {
	return o.cfg.Caller
}

// Run books up to req.NumCalls calls. Candidate-level failures become skips.
// A non-nil Outcome is returned alongside ErrRunCanceled so partial bookings
// are not lost.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := o.cfg.Caller.Validate(); err != nil {
		o.metrics.ObserveRun("config_error")
		return nil, err
	}
	if err := req.Validate(); err != nil {
		o.metrics.ObserveRun("invalid")
		return nil, err
	}

	outcome := &Outcome{RunID: o.newRunID(), Booked: []Record{}, Skipped: []Skip{}}
	log := o.logger.With("run_id", outcome.RunID)

	ctx, span := bookingTracer.Start(ctx, "booking.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.run_id", outcome.RunID),
		attribute.String("booking.company", req.TargetCompany),
		attribute.String("booking.role", req.TargetRole),
		attribute.Int("booking.num_calls", req.NumCalls),
		attribute.Float64("booking.max_price", req.MaxPrice),
	)

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, strings.ToLower(o.cfg.Caller.Email))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run lock")
			if errors.Is(err, runlock.ErrHeld) {
				o.metrics.ObserveRun("locked")
				return nil, fmt.Errorf("%w: %v", ErrRunInProgress, err)
			}
			o.metrics.ObserveRun("lock_error")
			return nil, fmt.Errorf("booking: acquire run lock: %w", err)
		}
		defer func() {
			// The run context may already be done; releasing must still happen.
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				log.Warn("booking: failed to release run lock", "error", err)
			}
		}()
	}

	session, err := o.sessions.Open(ctx)
	if err != nil {
		o.metrics.ObserveRun("session_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "open session")
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("booking: failed to close session", "error", err)
		}
	}()

	log.Debug("booking: state", "state", "searching", "query", req.Query())
	candidates, err := o.search(ctx, session, req.Query())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return o.canceled(outcome, ctxErr, span, log)
	}
	if err != nil {
		o.metrics.ObserveRun("search_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "search")
		log.Error("booking: search failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	span.SetAttributes(attribute.Int("booking.candidates", len(candidates)))
	log.Debug("booking: state", "state", "enumerating", "candidates", len(candidates))

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if outcome.BookedCount() >= req.NumCalls {
			break
		}
		if err := ctx.Err(); err != nil {
			return o.canceled(outcome, err, span, log)
		}
		key := strings.ToLower(strings.TrimSpace(candidate.Username))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		o.processCandidate(ctx, session, req, candidate, outcome, log)
	}
	if err := ctx.Err(); err != nil && outcome.BookedCount() < req.NumCalls {
		return o.canceled(outcome, err, span, log)
	}

	log.Debug("booking: state", "state", "done")
	log.Info("booking: run finished",
		"booked", outcome.BookedCount(),
		"requested", req.NumCalls,
		"skipped", len(outcome.Skipped),
	)
	span.SetAttributes(attribute.Int("booking.booked", outcome.BookedCount()))

	status := "complete"
	if outcome.BookedCount() < req.NumCalls {
		status = "partial"
	}
	o.metrics.ObserveRun(status)

	if o.notifier != nil {
		if err := o.notifier.NotifyOutcome(ctx, o.cfg.Caller, req, outcome); err != nil {
			log.Warn("booking: failed to send run summary", "error", err)
		}
	}
	return outcome, nil
}

// canceled ends a run whose context is done. Bookings made so far are
// returned and the notifier is not called.
func (o *Orchestrator) canceled(outcome *Outcome, err error, span trace.Span, log *logging.Logger) (*Outcome, error) {
	o.metrics.ObserveRun("canceled")
	log.Info("booking: run canceled", "booked", outcome.BookedCount())
	span.SetStatus(codes.Error, "canceled")
	return outcome, fmt.Errorf("%w: %w", ErrRunCanceled, err)
}

func (o *Orchestrator) search(ctx context.Context, session Session, query string) ([]experts.CandidateIdentity, error) {
	started := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.NavigationTimeout)
	defer cancel()
	candidates, err := session.Search(stepCtx, query)
	o.metrics.ObserveStep("search", started, err)
	return candidates, err
}

func (o *Orchestrator) processCandidate(ctx context.Context, session Session, req Request, candidate experts.CandidateIdentity, outcome *Outcome, log *logging.Logger) {
	ctx, span := bookingTracer.Start(ctx, "booking.candidate", trace.WithAttributes(
		attribute.String("expert.username", candidate.Username),
	))
	defer span.End()
	log = log.With("expert", candidate.Username)

	skip := func(reason SkipReason, err error) {
		// A step that failed because the run was canceled says nothing about
		// the expert; the caller reports the cancellation instead.
		if ctx.Err() != nil {
			log.Debug("booking: candidate abandoned", "reason", string(reason), "error", err)
			return
		}
		detail := ""
		if err != nil {
			detail = err.Error()
			span.RecordError(err)
		}
		span.SetAttributes(attribute.String("booking.skip_reason", string(reason)))
		outcome.skip(candidate.Username, reason, detail)
		o.metrics.ObserveCandidate(string(reason))
		log.Info("booking: candidate skipped", "reason", string(reason), "detail", detail)
	}

	profile, err := o.fetchProfile(ctx, candidate.Username)
	if err != nil || profile == nil {
		if err == nil {
			err = errors.New("profile not found")
		}
		skip(SkipProfileFetchFailed, err)
		return
	}

	log.Debug("booking: state", "state", "qualifying")
	res := o.engine.Qualify(candidate, profile, req.TargetCompany, req.TargetRole, req.MaxPrice)
	if !res.Matched {
		skip(SkipReason(res.Reason), nil)
		return
	}
	service := res.QualifyingServices[0]
	span.SetAttributes(attribute.String("expert.service_id", service.ID))

	log.Debug("booking: state", "state", "slot_matching", "service_id", service.ID)
	slots, err := o.openAndList(ctx, session, candidate.Username, service.ID)
	if err != nil {
		skip(SkipBookingPageError, err)
		return
	}

	match, ok := schedule.FindMatchingSlot(slots, req.Availability, profile.Timezone)
	if !ok {
		skip(SkipNoSlotInAvailability, nil)
		return
	}

	log.Debug("booking: state", "state", "booking", "slot", match.Slot.RawLabel)
	confirmation, err := o.submit(ctx, session, match.Slot.Ref)
	if err != nil {
		skip(SkipSubmissionFailed, err)
		return
	}

	record := newRecord(candidate, profile, service, match, confirmation)
	outcome.Booked = append(outcome.Booked, record)
	o.metrics.ObserveCandidate("booked")
	log.Info("booking: call booked",
		"service_id", service.ID,
		"price", service.Price.String(),
		"slot_utc", record.SlotUTC.Format(time.RFC3339),
	)
}

func (o *Orchestrator) fetchProfile(ctx context.Context, username string) (*experts.Profile, error) {
	started := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.APITimeout)
	defer cancel()
	profile, err := o.profiles.FetchProfile(stepCtx, username)
	o.metrics.ObserveStep("profile", started, err)
	return profile, err
}

func (o *Orchestrator) openAndList(ctx context.Context, session Session, username, serviceID string) ([]schedule.SlotCandidate, error) {
	if err := o.step(ctx, "open_service", func(stepCtx context.Context) error {
		return session.OpenService(stepCtx, username, serviceID)
	}); err != nil {
		return nil, fmt.Errorf("open service: %w", err)
	}
	var slots []schedule.SlotCandidate
	err := o.step(ctx, "list_slots", func(stepCtx context.Context) error {
		var err error
		slots, err = session.ListSlots(stepCtx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (o *Orchestrator) submit(ctx context.Context, session Session, ref string) (*Confirmation, error) {
	if err := o.step(ctx, "select_slot", func(stepCtx context.Context) error {
		return session.SelectSlot(stepCtx, ref)
	}); err != nil {
		return nil, fmt.Errorf("select slot: %w", err)
	}
	var confirmation *Confirmation
	err := o.step(ctx, "submit", func(stepCtx context.Context) error {
		var err error
		confirmation, err = session.SubmitBookingForm(stepCtx, o.cfg.Caller)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if confirmation == nil {
		confirmation = &Confirmation{}
	}
	return confirmation, nil
}

// step runs one browser action under the navigation timeout.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	started := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.NavigationTimeout)
	defer cancel()
	err := fn(stepCtx)
	o.metrics.ObserveStep(name, started, err)
	return err
}

func newRecord(candidate experts.CandidateIdentity, profile *experts.Profile, service experts.ServiceOffering, match schedule.Match, confirmation *Confirmation) Record {
	tz := match.Window.Timezone
	local := match.Slot.Instant
	if loc, err := schedule.LoadLocation(tz); err == nil {
		local = local.In(loc)
	}
	name := profile.FullName
	if name == "" {
		name = candidate.DisplayName
	}
	title := profile.Headline
	if title == "" {
		title = candidate.ShortDescription
	}
	return Record{
		ExpertUsername:  candidate.Username,
		ExpertName:      name,
		ExpertTitle:     title,
		ServiceID:       service.ID,
		ServiceTitle:    service.Title,
		Price:           service.Price.Amount,
		Currency:        service.Price.Currency,
		SlotLocal:       local,
		SlotUTC:         match.Slot.Instant.UTC(),
		CallerTimezone:  tz,
		ProfileURL:      candidate.ProfileURL,
		ConfirmationURL: confirmation.URL,
	}
}
