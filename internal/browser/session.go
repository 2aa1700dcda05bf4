// Package browser owns the headless-browser session used to acquire pages.
// One Session is opened per pipeline run and closed unconditionally on every
// exit path; all navigations and captures go through it so that login or
// captcha state established by an operator survives across captures.
package browser

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultNavigateTimeout bounds a single navigation so a stuck page load
// cannot absorb the run's deadline budget.
const DefaultNavigateTimeout = 45 * time.Second

// settleDelay gives client-side rendering a chance to finish after the
// document is ready.
const settleDelay = 3 * time.Second

// WaitCondition selects how long Navigate waits before capturing HTML.
type WaitCondition string

const (
	// WaitReady waits for the body element to be ready, then a short settle delay.
	WaitReady WaitCondition = "ready"
	// WaitVisible additionally requires the body to be visible (rendered).
	WaitVisible WaitCondition = "visible"
)

// PageCapture is an immutable snapshot of one page acquisition.
// A new capture is taken on every navigation and after every
// operator-resolved wait; captures are never mutated.
type PageCapture struct {
	URL           string    `json:"url"`
	HTML          string    `json:"html"`
	CapturedAt    time.Time `json:"captured_at"`
	ScreenshotRef string    `json:"screenshot_ref,omitempty"`
}

// Options configures a browser session.
type Options struct {
	// Headless runs the browser without a visible window. Human-in-the-loop
	// recovery (login walls, captchas) requires Headless=false so an operator
	// can interact with the page.
	Headless bool
	Verbose  bool
}

// DefaultOptions returns a headless session configuration.
func DefaultOptions() *Options {
	return &Options{Headless: true}
}

// Session is one live browser owned by a single pipeline run.
type Session struct {
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
	verbose     bool
}

// Open starts a browser session. The caller must Close it on every exit path.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so Open fails fast when Chrome is missing.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Session{
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelCtx:   cancelCtx,
		verbose:     opts.Verbose,
	}, nil
}

// Navigate loads a URL and returns a fresh capture of the rendered page.
func (s *Session) Navigate(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) (*PageCapture, error) {
	if timeout <= 0 {
		timeout = DefaultNavigateTimeout
	}

	if s.verbose {
		log.Printf("[BROWSER] Navigating to %s", url)
	}

	navCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	switch wait {
	case WaitVisible:
		actions = append(actions, chromedp.WaitVisible("body", chromedp.ByQuery))
	default:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	actions = append(actions, chromedp.Sleep(settleDelay))

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(navCtx, actions...); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	if s.verbose {
		log.Printf("[BROWSER] Captured %d bytes from %s", len(html), url)
	}

	return &PageCapture{URL: url, HTML: html, CapturedAt: time.Now()}, nil
}

// CaptureHTML re-captures the current page without navigating.
// Used after an operator resolves a login wall or captcha in place.
func (s *Session) CaptureHTML(ctx context.Context, timeout time.Duration) (*PageCapture, error) {
	if timeout <= 0 {
		timeout = DefaultNavigateTimeout
	}

	capCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	var html, location string
	err := chromedp.Run(capCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("page capture failed: %w", err)
	}

	return &PageCapture{URL: location, HTML: html, CapturedAt: time.Now()}, nil
}

// Screenshot captures a PNG of the current viewport.
func (s *Session) Screenshot(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultNavigateTimeout
	}

	shotCtx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	if s.cancelCtx != nil {
		s.cancelCtx()
		s.cancelCtx = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
}

// boundedCtx derives a browser action context that honors both the session's
// browser context and the caller's cancellation, with a hard timeout.
func (s *Session) boundedCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	boundCtx, cancelTimeout := context.WithTimeout(s.browserCtx, timeout)

	// Propagate caller cancellation into the browser-derived context.
	stop := context.AfterFunc(ctx, cancelTimeout)
	return boundCtx, func() {
		stop()
		cancelTimeout()
	}
}
