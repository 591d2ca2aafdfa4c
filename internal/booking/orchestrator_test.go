package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/internal/observability/metrics"
	"github.com/wolfman30/expert-call-booker/internal/runlock"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

type fakeSession struct {
	mu sync.Mutex

	candidates []experts.CandidateIdentity
	searchErr  error
	slots      map[string][]schedule.SlotCandidate
	openErr    map[string]error
	submitErr  map[string]error
	// cancel is invoked after a successful submit when set.
	cancel func()
	// blockSearch and blockOpen make the step wait for its context to end.
	blockSearch bool
	blockOpen   map[string]bool

	current   string
	opened    []string
	submitted []string
	callers   []CallerDetails
	closed    int
}

func (s *fakeSession) Search(ctx context.Context, _ string) ([]experts.CandidateIdentity, error) {
	if s.blockSearch {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.candidates, s.searchErr
}

func (s *fakeSession) OpenService(ctx context.Context, username, serviceID string) error {
	s.mu.Lock()
	s.opened = append(s.opened, username+"/"+serviceID)
	s.current = username
	block := s.blockOpen[username]
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.openErr[username]
}

func (s *fakeSession) ListSlots(context.Context) ([]schedule.SlotCandidate, error) {
	return s.slots[s.current], nil
}

func (s *fakeSession) SelectSlot(context.Context, string) error { return nil }

func (s *fakeSession) SubmitBookingForm(_ context.Context, caller CallerDetails) (*Confirmation, error) {
	if err := s.submitErr[s.current]; err != nil {
		return nil, err
	}
	s.submitted = append(s.submitted, s.current)
	s.callers = append(s.callers, caller)
	if s.cancel != nil {
		s.cancel()
	}
	return &Confirmation{URL: "https://marketplace.test/confirm/" + s.current}, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeOpener struct {
	session *fakeSession
	err     error
}

func (o *fakeOpener) Open(context.Context) (Session, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

type fakeProfiles struct {
	profiles map[string]*experts.Profile
	errs     map[string]error
	fetched  []string
	// block makes the fetch wait for its context; onBlock runs first.
	block   map[string]bool
	onBlock func()
}

func (p *fakeProfiles) FetchProfile(ctx context.Context, username string) (*experts.Profile, error) {
	p.fetched = append(p.fetched, username)
	if p.block[username] {
		if p.onBlock != nil {
			p.onBlock()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := p.errs[username]; err != nil {
		return nil, err
	}
	return p.profiles[username], nil
}

type recordingNotifier struct {
	calls   int
	outcome *Outcome
	err     error
}

func (n *recordingNotifier) NotifyOutcome(_ context.Context, _ CallerDetails, _ Request, outcome *Outcome) error {
	n.calls++
	n.outcome = outcome
	return n.err
}

func testCaller() CallerDetails {
	return CallerDetails{Name: "Sam Caller", Email: "sam@example.com", Phone: "+15550100"}
}

func candidate(username string) experts.CandidateIdentity {
	return experts.CandidateIdentity{
		Username:   username,
		ProfileURL: "https://marketplace.test/" + username,
	}
}

func designerProfile(username string, price float64) *experts.Profile {
	return &experts.Profile{
		Username: username,
		FullName: "Expert " + username,
		Headline: "Senior Designer at Acme",
		Timezone: "America/New_York",
		Services: []experts.ServiceOffering{
			{ID: "doc-1", Title: "Portfolio review doc", Price: experts.Money{Amount: 0}, Type: experts.ServiceDocument},
			{ID: "call-1", Title: "Intro call", Price: experts.Money{Amount: price, Currency: "USD"}, Type: experts.ServiceVideoMeeting},
		},
	}
}

func mondayWindow(t *testing.T) schedule.Window {
	t.Helper()
	w, err := schedule.ParseWindow(schedule.WindowSpec{
		Days: []string{"Mon"}, Start: "09:00", End: "17:00", Timezone: "America/New_York",
	})
	require.NoError(t, err)
	return w
}

func designerRequest(t *testing.T, numCalls int) Request {
	return Request{
		TargetCompany: "Acme",
		TargetRole:    "Designer",
		NumCalls:      numCalls,
		MaxPrice:      0,
		Availability:  []schedule.Window{mondayWindow(t)},
	}
}

func inWindowSlots() []schedule.SlotCandidate {
	// 2026-10-19 is a Monday; labels are on the expert's New York clock.
	return []schedule.SlotCandidate{
		{RawLabel: "2026-10-19 08:00", Ref: "early"},
		{RawLabel: "2026-10-19 10:30", Ref: "slot-1030"},
	}
}

func newTestOrchestrator(session *fakeSession, profiles *fakeProfiles, opts ...Option) *Orchestrator {
	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithRunIDs(func() string { return "run-1" }),
	}, opts...)
	return NewOrchestrator(Config{Caller: testCaller()}, &fakeOpener{session: session}, profiles, opts...)
}

func TestRunBooksFreeDesignerCall(t *testing.T) {
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{candidate("jane")},
		slots:      map[string][]schedule.SlotCandidate{"jane": inWindowSlots()},
	}
	profiles := &fakeProfiles{profiles: map[string]*experts.Profile{"jane": designerProfile("jane", 0)}}

	outcome, err := newTestOrchestrator(session, profiles).Run(context.Background(), designerRequest(t, 1))
	require.NoError(t, err)
	require.Equal(t, 1, outcome.BookedCount())
	assert.Equal(t, "run-1", outcome.RunID)
	assert.Empty(t, outcome.Skipped)

	rec := outcome.Booked[0]
	assert.Equal(t, "jane", rec.ExpertUsername)
	assert.Equal(t, "call-1", rec.ServiceID, "documents are never booked")
	assert.Equal(t, 0.0, rec.Price)
	assert.Equal(t, time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC), rec.SlotUTC)
	assert.Equal(t, "America/New_York", rec.SlotLocal.Location().String())
	assert.Equal(t, 10, rec.SlotLocal.Hour())
	assert.Equal(t, "https://marketplace.test/confirm/jane", rec.ConfirmationURL)
	assert.Equal(t, []string{"jane/call-1"}, session.opened)
	assert.Equal(t, testCaller(), session.callers[0])
	assert.Equal(t, 1, session.closed)
}

func TestRunStopsOnceTargetReached(t *testing.T) {
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{candidate("a"), candidate("b"), candidate("c"), candidate("d")},
		slots: map[string][]schedule.SlotCandidate{
			"a": inWindowSlots(),
			"c": inWindowSlots(),
			"d": inWindowSlots(),
		},
	}
	mismatch := designerProfile("b", 0)
	mismatch.Headline = "Accountant at Initech"
	profiles := &fakeProfiles{profiles: map[string]*experts.Profile{
		"a": designerProfile("a", 0),
		"b": mismatch,
		"c": designerProfile("c", 0),
		"d": designerProfile("d", 0),
	}}

	outcome, err := newTestOrchestrator(session, profiles).Run(context.Background(), designerRequest(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.BookedCount())
	assert.Equal(t, []string{"a", "c"}, session.submitted)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, Skip{Username: "b", Reason: SkipCriteriaMismatch}, outcome.Skipped[0])
	assert.NotContains(t, profiles.fetched, "d")
}

func TestRunDeduplicatesCandidates(t *testing.T) {
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{candidate("jane"), candidate("Jane"), candidate("jane")},
		slots:      map[string][]schedule.SlotCandidate{"jane": inWindowSlots()},
	}
	profiles := &fakeProfiles{profiles: map[string]*experts.Profile{"jane": designerProfile("jane", 0)}}

	outcome, err := newTestOrchestrator(session, profiles).Run(context.Background(), designerRequest(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.BookedCount())
	assert.Equal(t, []string{"jane"}, profiles.fetched)
	assert.Empty(t, outcome.Skipped)
}

func TestRunRecordsSkipReasons(t *testing.T) {
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{
			candidate("gone"), candidate("pricey"), candidate("broken"), candidate("busy"), candidate("flaky"),
		},
		slots: map[string][]schedule.SlotCandidate{
			"busy":  {{RawLabel: "2026-10-20 10:00", Ref: "tue"}},
			"flaky": inWindowSlots(),
		},
		openErr:   map[string]error{"broken": errors.New("page timeout")},
		submitErr: map[string]error{"flaky": errors.New("confirmation not shown")},
	}
	profiles := &fakeProfiles{
		profiles: map[string]*experts.Profile{
			"pricey": designerProfile("pricey", 150),
			"broken": designerProfile("broken", 0),
			"busy":   designerProfile("busy", 0),
			"flaky":  designerProfile("flaky", 0),
		},
		errs: map[string]error{"gone": errors.New("404")},
	}

	outcome, err := newTestOrchestrator(session, profiles).Run(context.Background(), designerRequest(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.BookedCount())

	reasons := map[string]SkipReason{}
	for _, s := range outcome.Skipped {
		reasons[s.Username] = s.Reason
	}
	assert.Equal(t, map[string]SkipReason{
		"gone":   SkipProfileFetchFailed,
		"pricey": SkipNoAffordableLiveService,
		"broken": SkipBookingPageError,
		"busy":   SkipNoSlotInAvailability,
		"flaky":  SkipSubmissionFailed,
	}, reasons)
	assert.Equal(t, 1, session.closed)
}

func TestRunMissingProfileIsSkipped(t *testing.T) {
	session := &fakeSession{candidates: []experts.CandidateIdentity{candidate("ghost")}}
	profiles := &fakeProfiles{}

	outcome, err := newTestOrchestrator(session, profiles).Run(context.Background(), designerRequest(t, 1))
	require.NoError(t, err)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, SkipProfileFetchFailed, outcome.Skipped[0].Reason)
}

func TestRunSearchFailureIsFatal(t *testing.T) {
	session := &fakeSession{searchErr: errors.New("captcha wall")}

	outcome, err := newTestOrchestrator(session, &fakeProfiles{}).Run(context.Background(), designerRequest(t, 1))
	require.ErrorIs(t, err, ErrSearchFailed)
	assert.Contains(t, err.Error(), "captcha wall")
	assert.Nil(t, outcome)
	assert.Equal(t, 1, session.closed)
}

func TestRunSessionOpenFailure(t *testing.T) {
	orch := NewOrchestrator(Config{Caller: testCaller()}, &fakeOpener{err: errors.New("no chrome")}, &fakeProfiles{},
		WithLogger(logging.Discard()))

	_, err := orch.Run(context.Background(), designerRequest(t, 1))
	require.ErrorIs(t, err, ErrSessionUnavailable)
}

func TestRunRejectsMissingCallerBeforeSession(t *testing.T) {
	opener := &fakeOpener{err: errors.New("should not be called")}
	orch := NewOrchestrator(Config{Caller: CallerDetails{Name: "Sam"}}, opener, &fakeProfiles{},
		WithLogger(logging.Discard()))

	_, err := orch.Run(context.Background(), designerRequest(t, 1))
	require.ErrorIs(t, err, ErrMissingCallerIdentity)
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	session := &fakeSession{}
	req := designerRequest(t, 0)
	req.TargetCompany = " "

	_, err := newTestOrchestrator(session, &fakeProfiles{}).Run(context.Background(), req)
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Issues, 2)
	assert.Equal(t, 0, session.closed, "session never opened")
}

func TestRunCancellationReturnsPartialOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{candidate("a"), candidate("b")},
		slots: map[string][]schedule.SlotCandidate{
			"a": inWindowSlots(),
			"b": inWindowSlots(),
		},
		cancel: cancel,
	}
	profiles := &fakeProfiles{profiles: map[string]*experts.Profile{
		"a": designerProfile("a", 0),
		"b": designerProfile("b", 0),
	}}

	outcome, err := newTestOrchestrator(session, profiles).Run(ctx, designerRequest(t, 2))
	require.ErrorIs(t, err, ErrRunCanceled)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, outcome.BookedCount())
	assert.Equal(t, 1, session.closed)
}

func TestRunCanceledDuringSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(20*time.Millisecond, cancel)
	session := &fakeSession{blockSearch: true}
	notifier := &recordingNotifier{}

	outcome, err := newTestOrchestrator(session, &fakeProfiles{}, WithNotifier(notifier)).Run(ctx, designerRequest(t, 1))
	require.ErrorIs(t, err, ErrRunCanceled)
	assert.NotErrorIs(t, err, ErrSearchFailed)
	require.NotNil(t, outcome)
	assert.Zero(t, outcome.BookedCount())
	assert.Equal(t, 1, session.closed)
	assert.Zero(t, notifier.calls)
}

func TestRunCanceledDuringLastCandidate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{candidate("a"), candidate("slow")},
		slots:      map[string][]schedule.SlotCandidate{"a": inWindowSlots()},
	}
	profiles := &fakeProfiles{
		profiles: map[string]*experts.Profile{"a": designerProfile("a", 0)},
		block:    map[string]bool{"slow": true},
		onBlock:  cancel,
	}
	notifier := &recordingNotifier{}

	outcome, err := newTestOrchestrator(session, profiles, WithNotifier(notifier)).Run(ctx, designerRequest(t, 2))
	require.ErrorIs(t, err, ErrRunCanceled)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, outcome.BookedCount())
	assert.Empty(t, outcome.Skipped, "a canceled step is not an expert skip")
	assert.Zero(t, notifier.calls)
}

func TestRunStepTimeoutSkipsCandidateAndContinues(t *testing.T) {
	session := &fakeSession{
		candidates: []experts.CandidateIdentity{candidate("slow"), candidate("stuck"), candidate("jane")},
		slots:      map[string][]schedule.SlotCandidate{"jane": inWindowSlots()},
		blockOpen:  map[string]bool{"stuck": true},
	}
	profiles := &fakeProfiles{
		profiles: map[string]*experts.Profile{
			"stuck": designerProfile("stuck", 0),
			"jane":  designerProfile("jane", 0),
		},
		block: map[string]bool{"slow": true},
	}
	orch := NewOrchestrator(Config{
		Caller:            testCaller(),
		APITimeout:        30 * time.Millisecond,
		NavigationTimeout: 30 * time.Millisecond,
	}, &fakeOpener{session: session}, profiles, WithLogger(logging.Discard()))

	outcome, err := orch.Run(context.Background(), designerRequest(t, 1))
	require.NoError(t, err)
	require.Equal(t, 1, outcome.BookedCount())
	assert.Equal(t, "jane", outcome.Booked[0].ExpertUsername)

	require.Len(t, outcome.Skipped, 2)
	assert.Equal(t, "slow", outcome.Skipped[0].Username)
	assert.Equal(t, SkipProfileFetchFailed, outcome.Skipped[0].Reason)
	assert.Contains(t, outcome.Skipped[0].Detail, context.DeadlineExceeded.Error())
	assert.Equal(t, "stuck", outcome.Skipped[1].Username)
	assert.Equal(t, SkipBookingPageError, outcome.Skipped[1].Reason)
}

func TestRunRejectsOverlappingRuns(t *testing.T) {
	locker := runlock.NewMemoryLocker()
	release, err := locker.Acquire(context.Background(), "sam@example.com")
	require.NoError(t, err)
	defer release(context.Background())

	session := &fakeSession{}
	_, err = newTestOrchestrator(session, &fakeProfiles{}, WithRunLocker(locker)).Run(context.Background(), designerRequest(t, 1))
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, 0, session.closed)
}

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestRunLockBackendFailureIsNotAConflict(t *testing.T) {
	session := &fakeSession{}
	_, err := newTestOrchestrator(session, &fakeProfiles{}, WithRunLocker(brokenLocker{})).Run(context.Background(), designerRequest(t, 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, 0, session.closed)
}

func TestRunReleasesLockAndNotifies(t *testing.T) {
	locker := runlock.NewMemoryLocker()
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	session := &fakeSession{candidates: []experts.CandidateIdentity{candidate("jane")},
		slots: map[string][]schedule.SlotCandidate{"jane": inWindowSlots()}}
	profiles := &fakeProfiles{profiles: map[string]*experts.Profile{"jane": designerProfile("jane", 0)}}

	orch := newTestOrchestrator(session, profiles, WithRunLocker(locker), WithNotifier(notifier))
	outcome, err := orch.Run(context.Background(), designerRequest(t, 1))
	require.NoError(t, err, "notifier errors are not fatal")
	assert.Equal(t, 1, notifier.calls)
	assert.Same(t, outcome, notifier.outcome)

	release, err := locker.Acquire(context.Background(), "sam@example.com")
	require.NoError(t, err, "lock released after run")
	require.NoError(t, release(context.Background()))
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	session := &fakeSession{candidates: []experts.CandidateIdentity{candidate("pricey"), candidate("jane")},
		slots: map[string][]schedule.SlotCandidate{"jane": inWindowSlots()}}
	profiles := &fakeProfiles{profiles: map[string]*experts.Profile{
		"pricey": designerProfile("pricey", 99),
		"jane":   designerProfile("jane", 0),
	}}

	_, err := newTestOrchestrator(session, profiles, WithMetrics(m)).Run(context.Background(), designerRequest(t, 1))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "callbooker_orchestrator_bookings_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(reg, "callbooker_orchestrator_candidates_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series for booked, one for the skip reason")
}
