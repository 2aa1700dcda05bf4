package pipeline

import (
	"context"

	"github.com/jonathan/apply-assist/internal/browser"
	"github.com/jonathan/apply-assist/internal/fetch"
)

// Page is one acquired snapshot of the target URL.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
}

// PageSource acquires the page under analysis. Recapture re-reads the live
// page after an operator intervention without renavigating, so session state
// the operator established survives.
type PageSource interface {
	Acquire(ctx context.Context, url string) (*Page, error)
	Recapture(ctx context.Context) (*Page, error)
	Close()
}

// browserSource drives a headless browser session for the run's lifetime.
type browserSource struct {
	session *browser.Session
}

// NewBrowserSource opens a browser-backed page source.
func NewBrowserSource(ctx context.Context, headless bool) (PageSource, error) {
	session, err := browser.Open(ctx, &browser.Options{Headless: headless})
	if err != nil {
		return nil, err
	}
	return &browserSource{session: session}, nil
}

func (b *browserSource) Acquire(ctx context.Context, url string) (*Page, error) {
	capture, err := b.session.Navigate(ctx, url, browser.WaitReady, browser.DefaultNavigateTimeout)
	if err != nil {
		return nil, err
	}
	return &Page{URL: capture.URL, HTML: capture.HTML, StatusCode: 200}, nil
}

func (b *browserSource) Recapture(ctx context.Context) (*Page, error) {
	capture, err := b.session.CaptureHTML(ctx, browser.DefaultNavigateTimeout)
	if err != nil {
		return nil, err
	}
	return &Page{URL: capture.URL, HTML: capture.HTML, StatusCode: 200}, nil
}

func (b *browserSource) Close() {
	b.session.Close()
}

// httpSource fetches over plain HTTP. Recapture refetches the last URL.
type httpSource struct {
	lastURL string
}

// NewHTTPSource returns a page source backed by the HTTP fetcher.
func NewHTTPSource() PageSource {
	return &httpSource{}
}

func (h *httpSource) Acquire(ctx context.Context, url string) (*Page, error) {
	result, err := fetch.URL(ctx, url, nil)
	if result == nil {
		return nil, err
	}
	// Non-200 pages still flow to the classifier, which names them.
	h.lastURL = result.FinalURL
	return &Page{URL: result.FinalURL, HTML: result.HTML, StatusCode: result.StatusCode}, nil
}

func (h *httpSource) Recapture(ctx context.Context) (*Page, error) {
	if h.lastURL == "" {
		return nil, &fetch.Error{Message: "no page acquired yet"}
	}
	return h.Acquire(ctx, h.lastURL)
}

func (h *httpSource) Close() {}
