// Package fetch provides plain HTTP fetching of page HTML.
// It is the non-browser acquisition path, used for resolver hops and
// company-research page visits where a full browser render is unnecessary.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; ApplyAssist/1.0)"

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 10 << 20 // 10 MiB

// Result holds the content of one URL fetch.
type Result struct {
	URL         string
	FinalURL    string // after redirects
	HTML        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	Headers     map[string]string
	MaxBodySize int64
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// URL retrieves HTML content from a URL.
// A Result is returned even on non-200 status so callers can classify
// error pages; the accompanying Error has no Cause in that case.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fail := func(message string, cause error) (*Result, error) {
		return nil, &Error{URL: urlStr, Message: message, Cause: cause}
	}

	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fail("invalid URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fail("failed to create request", err)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fail("HTTP request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if !usableContentType(contentType) {
		return fail(fmt.Sprintf("unsupported content type %q", contentType), nil)
	}

	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fail("failed to read response body", err)
	}

	result := &Result{
		URL:         urlStr,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(body),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return result, &Error{URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return result, nil
}

// usableContentType accepts the types a page analysis can work with.
// Binary payloads (PDFs, images) are rejected before the body is read.
func usableContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain", "application/json":
		return true
	}
	return false
}
