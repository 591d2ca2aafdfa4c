// Package browser drives the marketplace website with a headless Chrome
// session. Page markup is read back as HTML and parsed with goquery.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/wolfman30/expert-call-booker/internal/booking"
	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	startupTimeout   = 45 * time.Second
	screenshotWait   = 10 * time.Second
)

// ScreenshotSink stores a PNG captured when a browser step fails.
type ScreenshotSink interface {
	PutScreenshot(ctx context.Context, name string, png []byte) (string, error)
}

// Config controls how the browser is launched and how pages are driven.
type Config struct {
	BaseURL              string
	Headless             bool
	ExecPath             string
	UserAgent            string
	NavigationsPerSecond float64
	MaxResults           int
	DryRun               bool
	Selectors            Selectors
}

// Launcher opens one browser session per run.
type Launcher struct {
	cfg     Config
	base    *url.URL
	limiter *rate.Limiter
	sink    ScreenshotSink
	logger  *logging.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithScreenshotSink uploads a screenshot whenever a step fails.
func WithScreenshotSink(sink ScreenshotSink) Option {
	return func(l *Launcher) { l.sink = sink }
}

// NewLauncher validates cfg and builds a launcher.
func NewLauncher(cfg Config, opts ...Option) (*Launcher, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("browser: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	cfg.Selectors = cfg.Selectors.withDefaults()

	limit := rate.Inf
	if cfg.NavigationsPerSecond > 0 {
		limit = rate.Limit(cfg.NavigationsPerSecond)
	}
	l := &Launcher{
		cfg:     cfg,
		base:    base,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.cfg.UserAgent),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Open starts Chrome and a single tab. The browser outlives ctx's
// cancellation and is torn down by Session.Close.
func (l *Launcher) Open(ctx context.Context) (booking.Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		l.logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
	}))
	abort := func() {
		cancelTab()
		cancelAlloc()
	}

	// The first Run allocates the browser process and binds it to the context
	// it is given, so it must run on the tab context itself. The startup
	// deadline is enforced from outside by tearing the browser down.
	err := startWithin(ctx, startupTimeout, func() error { return chromedp.Run(tabCtx) }, abort)
	if err != nil {
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}
	l.logger.Info("browser: session started", "headless", l.cfg.Headless, "dry_run", l.cfg.DryRun)
	return &Session{launcher: l, tabCtx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// startWithin runs start and waits for it. If ctx ends or timeout passes
// first, abort is called and start's return is awaited before reporting.
func startWithin(ctx context.Context, timeout time.Duration, start func() error, abort func()) error {
	done := make(chan error, 1)
	go func() { done <- start() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			abort()
		}
		return err
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	case <-timer.C:
		abort()
		<-done
		return fmt.Errorf("no response after %s: %w", timeout, context.DeadlineExceeded)
	}
}

// Session is one Chrome tab. It is not safe for concurrent use.
type Session struct {
	launcher    *Launcher
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closed      bool
}

var _ booking.Session = (*Session)(nil)

// Search runs a marketplace search and returns the candidate cards in page order.
func (s *Session) Search(ctx context.Context, query string) ([]experts.CandidateIdentity, error) {
	sel := s.launcher.cfg.Selectors
	target := s.launcher.base.JoinPath("search")
	target.RawQuery = url.Values{"query": {query}}.Encode()

	var html string
	err := s.navigate(ctx, "search", target.String(),
		chromedp.WaitReady(sel.SearchResults, chromedp.ByQuery),
		chromedp.OuterHTML(sel.SearchResults, &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	candidates, err := ParseSearchResults(html, s.launcher.base, sel, s.launcher.cfg.MaxResults)
	if err != nil {
		return nil, err
	}
	s.launcher.logger.Info("browser: search complete", "query", query, "candidates", len(candidates))
	return candidates, nil
}

// OpenService loads the booking page for one of the expert's services.
func (s *Session) OpenService(ctx context.Context, username, serviceID string) error {
	target := s.launcher.base.JoinPath(username, serviceID)
	return s.navigate(ctx, "open_service", target.String(),
		chromedp.WaitReady(s.launcher.cfg.Selectors.SlotPicker, chromedp.ByQuery),
	)
}

// ListSlots reads the enabled slots from the open booking page.
func (s *Session) ListSlots(ctx context.Context) ([]schedule.SlotCandidate, error) {
	sel := s.launcher.cfg.Selectors
	var html string
	if err := s.run(ctx, "list_slots",
		chromedp.OuterHTML(sel.SlotPicker, &html, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	return ParseSlots(html, sel)
}

// SelectSlot clicks the slot with the given ref and waits for the booking form.
func (s *Session) SelectSlot(ctx context.Context, ref string) error {
	sel := s.launcher.cfg.Selectors
	button := fmt.Sprintf(`%s[data-slot=%q]`, sel.SlotPicker+" button", ref)
	return s.run(ctx, "select_slot",
		chromedp.Click(button, chromedp.ByQuery),
		chromedp.WaitVisible(sel.BookingForm, chromedp.ByQuery),
	)
}

// SubmitBookingForm fills in the caller's details and submits. In dry-run
// mode the form is filled but never submitted.
func (s *Session) SubmitBookingForm(ctx context.Context, caller booking.CallerDetails) (*booking.Confirmation, error) {
	sel := s.launcher.cfg.Selectors
	fill := []chromedp.Action{
		chromedp.SetValue(sel.NameInput, "", chromedp.ByQuery),
		chromedp.SendKeys(sel.NameInput, caller.Name, chromedp.ByQuery),
		chromedp.SetValue(sel.EmailInput, "", chromedp.ByQuery),
		chromedp.SendKeys(sel.EmailInput, caller.Email, chromedp.ByQuery),
	}
	if caller.Phone != "" {
		fill = append(fill, optionalInput(sel.PhoneInput, caller.Phone))
	}
	if caller.Notes != "" {
		fill = append(fill, optionalInput(sel.NotesInput, caller.Notes))
	}
	if err := s.run(ctx, "fill_form", fill...); err != nil {
		return nil, err
	}

	if s.launcher.cfg.DryRun {
		var location string
		if err := s.run(ctx, "dry_run", chromedp.Location(&location)); err != nil {
			return nil, err
		}
		s.launcher.logger.Info("browser: dry run, booking form not submitted", "url", location)
		return &booking.Confirmation{URL: "dry-run:" + location, Text: "dry run"}, nil
	}

	var location, text string
	if err := s.run(ctx, "submit",
		chromedp.Click(sel.SubmitButton, chromedp.ByQuery),
		chromedp.WaitVisible(sel.Confirmation, chromedp.ByQuery),
		chromedp.Text(sel.Confirmation, &text, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, err
	}
	return &booking.Confirmation{URL: location, Text: collapse(text)}, nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := chromedp.Cancel(s.tabCtx)
	s.cancelTab()
	s.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}

// optionalInput types into selector only when the page has that field.
func optionalInput(selector, value string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var present bool
		if err := chromedp.Evaluate(fmt.Sprintf("document.querySelector(%q) !== null", selector), &present).Do(ctx); err != nil {
			return err
		}
		if !present {
			return nil
		}
		return chromedp.Tasks{
			chromedp.SetValue(selector, "", chromedp.ByQuery),
			chromedp.SendKeys(selector, value, chromedp.ByQuery),
		}.Do(ctx)
	})
}

// navigate waits for the pacing limiter, then loads target and runs actions.
func (s *Session) navigate(ctx context.Context, step, target string, actions ...chromedp.Action) error {
	if err := s.launcher.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("browser: %s: pacing: %w", step, err)
	}
	s.launcher.logger.Debug("browser: navigate", "step", step, "url", target)
	return s.run(ctx, step, append([]chromedp.Action{chromedp.Navigate(target)}, actions...)...)
}

func (s *Session) run(ctx context.Context, step string, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx, 0)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		s.capture(step)
		return fmt.Errorf("browser: %s: %w", step, err)
	}
	return nil
}

// bind derives a context from the tab that ends when ctx does (or after
// fallback if ctx has no deadline and fallback > 0).
func (s *Session) bind(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	} else if fallback > 0 {
		var cancelTO context.CancelFunc
		runCtx, cancelTO = context.WithTimeout(runCtx, fallback)
		prev := cancel
		cancel = func() { cancelTO(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) capture(step string) {
	if s.launcher.sink == nil {
		return
	}
	shotCtx, cancel := context.WithTimeout(s.tabCtx, screenshotWait)
	defer cancel()

	var png []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&png, 100)); err != nil {
		s.launcher.logger.Warn("browser: screenshot failed", "step", step, "error", err)
		return
	}
	name := fmt.Sprintf("%s-%s.png", time.Now().UTC().Format("20060102T150405.000Z"), step)
	uploadCtx, cancelUpload := context.WithTimeout(context.Background(), screenshotWait)
	defer cancelUpload()
	location, err := s.launcher.sink.PutScreenshot(uploadCtx, name, png)
	if err != nil {
		s.launcher.logger.Warn("browser: screenshot upload failed", "step", step, "error", err)
		return
	}
	s.launcher.logger.Info("browser: failure screenshot stored", "step", step, "location", location)
}
