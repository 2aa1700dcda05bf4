// Package resolve follows links from listing-style pages down to a concrete
// job detail page, with hard bounds on depth and fan-out.
package resolve

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-assist/internal/classify"
)

// Traversal bounds. Exceeding them is an exhaustion stop, not an error in
// any single fetch.
const (
	MaxDepth             = 2
	MaxCandidatesPerNode = 5
)

// ExhaustedError reports that every candidate within bounds was visited
// without reaching a job detail page.
type ExhaustedError struct {
	StartURL string
	Visited  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no job detail page reachable from %s (visited %d pages)", e.StartURL, e.Visited)
}

// Fetcher loads a page. FinalURL reflects redirects.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (html string, finalURL string, err error)
}

// Classifier assigns a page type to fetched HTML.
type Classifier interface {
	Classify(ctx context.Context, html, url string) (*classify.Classification, error)
}

// Options configures a traversal.
type Options struct {
	Fetcher    Fetcher
	Classifier Classifier
	Verbose    bool
}

// Result is the job detail page the traversal landed on.
type Result struct {
	URL            string
	HTML           string
	Classification *classify.Classification
	Hops           int
}

var (
	jobLinkRe   = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?|vacanc(?:y|ies)|apply)(/|$|\?)`)
	jobDetailRe = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?|vacanc(?:y|ies)|apply)/[^/]+`)
)

// TrustedJobPath reports whether a URL's path already names a specific
// posting. Such URLs are trusted over the page classification: descending
// from them risks an exhaustion stop on a page that was the target all
// along.
func TrustedJobPath(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return jobDetailRe.MatchString(parsed.Path)
}

// JobDetail walks same-origin job-looking links from an already fetched and
// classified page until it reaches a page classified as a job detail.
// Candidates are tried in document order, depth-first, so the first posting
// a reader would click is the one returned. A start URL whose path already
// matches a job-detail pattern is returned as-is, whatever it classified as.
func JobDetail(ctx context.Context, startURL, startHTML string, start *classify.Classification, opts *Options) (*Result, error) {
	if start != nil && classify.IsJobPage(start.Type) {
		return &Result{URL: startURL, HTML: startHTML, Classification: start}, nil
	}
	if TrustedJobPath(startURL) {
		return &Result{URL: startURL, HTML: startHTML, Classification: start}, nil
	}

	visited := map[string]bool{}
	if norm, err := NormalizeURL(startURL); err == nil {
		visited[norm] = true
	}

	result, err := descend(ctx, startURL, startHTML, 0, visited, opts)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &ExhaustedError{StartURL: startURL, Visited: len(visited)}
	}
	return result, nil
}

func descend(ctx context.Context, pageURL, html string, depth int, visited map[string]bool, opts *Options) (*Result, error) {
	if depth >= MaxDepth {
		return nil, nil
	}

	for _, candidate := range Candidates(html, pageURL) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		norm, err := NormalizeURL(candidate)
		if err != nil || visited[norm] {
			continue
		}
		visited[norm] = true

		childHTML, finalURL, err := opts.Fetcher.Fetch(ctx, candidate)
		if err != nil {
			if opts.Verbose {
				log.Printf("[RESOLVE] skipping %s: %v", candidate, err)
			}
			continue
		}
		if finalURL != "" && finalURL != candidate {
			if norm, err := NormalizeURL(finalURL); err == nil {
				if visited[norm] {
					continue
				}
				visited[norm] = true
			}
			candidate = finalURL
		}

		classification, err := opts.Classifier.Classify(ctx, childHTML, candidate)
		if err != nil {
			if opts.Verbose {
				log.Printf("[RESOLVE] classify failed for %s: %v", candidate, err)
			}
			continue
		}
		if classify.IsJobPage(classification.Type) {
			return &Result{URL: candidate, HTML: childHTML, Classification: classification, Hops: depth + 1}, nil
		}
		if followable(classification.Type) {
			if result, err := descend(ctx, candidate, childHTML, depth+1, visited, opts); err != nil || result != nil {
				return result, err
			}
		}
	}
	return nil, nil
}

// followable reports whether a page type is worth descending into.
func followable(t classify.PageType) bool {
	switch t {
	case classify.TypeListing, classify.TypeCategoryListing, classify.TypeCompanyCareers,
		classify.TypePagination, classify.TypeSearchLanding:
		return true
	}
	return false
}

// Candidates returns same-origin job-looking links from the page in document
// order, deduplicated by normalized form and capped at MaxCandidatesPerNode.
func Candidates(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var candidates []string
	seen := map[string]bool{}
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			return true
		}
		if !jobLinkRe.MatchString(resolved.Path) {
			return true
		}
		norm, err := NormalizeURL(resolved.String())
		if err != nil || seen[norm] {
			return true
		}
		seen[norm] = true
		candidates = append(candidates, resolved.String())
		return len(candidates) < MaxCandidatesPerNode
	})
	return candidates
}

// NormalizeURL produces the canonical form used for visit tracking: lowered
// scheme and host, no fragment, sorted query parameters, no trailing slash.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		values := parsed.Query()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			vals := values[k]
			sort.Strings(vals)
			for _, v := range vals {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		parsed.RawQuery = strings.Join(parts, "&")
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String(), nil
}
