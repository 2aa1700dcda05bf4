package company

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/prompts"
)

// DefaultMaxPages bounds how many pages one research pass may visit.
const DefaultMaxPages = 6

const (
	minPageTextChars = 100
	pageTextLimit    = 8000
	crawlDelay       = 500 * time.Millisecond
)

// Fetcher loads a page for research.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (html string, finalURL string, err error)
}

// Discoverer finds company pages through web search. Optional; research
// runs on path patterns alone without one.
type Discoverer interface {
	DiscoverWebsite(ctx context.Context, companyName string) (string, error)
	FindProfilePages(ctx context.Context, companyName, domain string) ([]string, error)
}

// ResearchOptions configures a research pass.
type ResearchOptions struct {
	Resolution *Resolution
	Dossier    *Dossier // existing memory to extend, nil starts fresh
	SeedURLs   []string
	MaxPages   int
	Fetcher    Fetcher
	Client     llm.Client
	Searcher   Discoverer
	Verbose    bool
	Now        func() time.Time
}

// highValuePaths are URL paths on the company domain likely to carry
// profile facts, in crawl priority order.
var highValuePaths = []rankedURL{
	{url: "about", priority: 1.0},
	{url: "about-us", priority: 0.95},
	{url: "company", priority: 0.9},
	{url: "careers", priority: 0.8},
	{url: "jobs", priority: 0.6},
	{url: "press", priority: 0.5},
}

type rankedURL struct {
	url      string
	priority float64
}

// Research visits a bounded set of company pages, extracts profile fields
// from each, and folds them into the dossier. A fresh dossier is returned
// untouched. Page failures are skipped; the pass only errs when it cannot
// run at all.
func Research(ctx context.Context, opts ResearchOptions) (*Dossier, error) {
	if opts.Resolution == nil || opts.Resolution.Name == "" {
		return nil, fmt.Errorf("research requires a resolved company")
	}
	if opts.Fetcher == nil || opts.Client == nil {
		return nil, fmt.Errorf("research requires a fetcher and a model client")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	dossier := opts.Dossier
	if dossier == nil {
		dossier = NewDossier(opts.Resolution.Name, opts.Resolution.Domain)
	}
	if dossier.Fresh(now()) {
		if opts.Verbose {
			log.Printf("[RESEARCH] Dossier for %s is fresh (updated %s), skipping", dossier.Company, dossier.UpdatedAt.Format(time.RFC3339))
		}
		return dossier, nil
	}

	domain := dossier.Domain
	if domain == "" && opts.Searcher != nil {
		if website, err := opts.Searcher.DiscoverWebsite(ctx, dossier.Company); err == nil {
			domain = companyDomain(website)
			dossier.Domain = domain
			if opts.Verbose {
				log.Printf("[RESEARCH] Discovered website for %s: %s", dossier.Company, website)
			}
		} else if opts.Verbose {
			log.Printf("[RESEARCH] Website discovery failed: %v", err)
		}
	}

	frontier := buildFrontier(ctx, opts, dossier.Company, domain)
	if opts.Verbose {
		log.Printf("[RESEARCH] Frontier has %d URLs for %s", len(frontier), dossier.Company)
	}

	visited := 0
	for _, target := range frontier {
		if visited >= maxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return dossier, err
		}
		if dossier.Visited(target.url) {
			continue
		}

		html, finalURL, err := opts.Fetcher.Fetch(ctx, target.url)
		if err != nil {
			if opts.Verbose {
				log.Printf("[RESEARCH] Failed to fetch %s: %v", target.url, err)
			}
			continue
		}
		pageURL := target.url
		if finalURL != "" {
			pageURL = finalURL
		}

		text := pageText(html)
		if len(text) < minPageTextChars {
			if opts.Verbose {
				log.Printf("[RESEARCH] Skipping %s, insufficient content (%d chars)", pageURL, len(text))
			}
			continue
		}

		observations, err := extractFields(ctx, opts.Client, dossier.Company, pageURL, text)
		if err != nil {
			if opts.Verbose {
				log.Printf("[RESEARCH] Field extraction failed for %s: %v", pageURL, err)
			}
			continue
		}
		for key, obs := range observations {
			dossier.MergeField(key, obs.value, obs.confidence, pageURL)
		}
		dossier.MarkVisited(target.url)
		visited++
		if opts.Verbose {
			log.Printf("[RESEARCH] %s contributed %d fields (coverage now %.2f)", pageURL, len(observations), dossier.Coverage)
		}

		time.Sleep(crawlDelay)
	}

	dossier.Touch(now())
	return dossier, nil
}

// buildFrontier assembles candidate URLs in priority order: explicit seeds,
// high-value path patterns on the company domain, then search discoveries.
func buildFrontier(ctx context.Context, opts ResearchOptions, companyName, domain string) []rankedURL {
	var frontier []rankedURL
	seen := map[string]bool{}
	add := func(u string, priority float64) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		frontier = append(frontier, rankedURL{url: u, priority: priority})
	}

	for _, seed := range opts.SeedURLs {
		add(seed, 1.0)
	}
	if domain != "" {
		for _, p := range highValuePaths {
			add(fmt.Sprintf("https://%s/%s", domain, p.url), p.priority)
		}
	}
	if opts.Searcher != nil {
		if pages, err := opts.Searcher.FindProfilePages(ctx, companyName, domain); err == nil {
			for _, page := range pages {
				add(page, pathPriority(page))
			}
		} else if opts.Verbose {
			log.Printf("[RESEARCH] Page discovery failed: %v", err)
		}
	}

	sort.SliceStable(frontier, func(i, j int) bool {
		return frontier[i].priority > frontier[j].priority
	})
	return frontier
}

// pathPriority scores a discovered URL by its path against the high-value
// patterns.
func pathPriority(rawURL string) float64 {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0.3
	}
	path := strings.ToLower(parsed.Path)
	best := 0.3
	for _, p := range highValuePaths {
		if strings.Contains(path, p.url) && p.priority > best {
			best = p.priority
		}
	}
	return best
}

type observation struct {
	value      string
	confidence float64
}

func extractFields(ctx context.Context, client llm.Client, companyName, pageURL, text string) (map[string]observation, error) {
	template, err := prompts.Get("research.json", "extract-company-fields")
	if err != nil {
		return nil, err
	}
	if len(text) > pageTextLimit {
		text = text[:pageTextLimit]
	}
	prompt := prompts.Format(template, map[string]string{
		"Company": companyName,
		"URL":     pageURL,
		"Content": text,
	})

	response, err := client.Generate(ctx, prompt, llm.TierFast, &llm.Options{Format: llm.FormatJSON})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Fields map[string]struct {
			Value      any     `json:"value"`
			Confidence float64 `json:"confidence"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse field response: %w", err)
	}

	observations := map[string]observation{}
	for key, field := range parsed.Fields {
		value := anyToString(field.Value)
		if value == "" {
			continue
		}
		observations[key] = observation{value: value, confidence: field.Confidence}
	}
	return observations, nil
}

// anyToString renders a model-provided value as a string. Models sometimes
// return numbers for founded_year or open_jobs_count.
func anyToString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case []any:
		var parts []string
		for _, item := range v {
			if s := anyToString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// pageText flattens a page to whitespace-normalized visible text.
func pageText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
