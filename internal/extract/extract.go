package extract

import (
	"context"
	"log"
	"strings"

	"github.com/jonathan/apply-assist/internal/llm"
)

// minRetryHTMLSize is the smallest raw page worth a second LLM pass. Below
// this there is no content the focused pass could have missed.
const minRetryHTMLSize = 500

// Input carries the page variants the strategies read from. Structured data
// and microdata live in RawHTML; the LLM reads FocusedText when present,
// falling back to CleanedText.
type Input struct {
	URL         string
	RawHTML     string
	CleanedText string
	FocusedText string
}

// Options configures the extraction chain.
type Options struct {
	Client  llm.Client
	Verbose bool
}

// Result is the outcome of the full chain. Detail is never nil; when every
// strategy comes up empty it holds sentinel values.
type Result struct {
	Detail   *JobDetail
	Strategy Strategy
	Attempts []Outcome
}

// Run walks the fallback chain in order and returns the first record with a
// real title. It never returns an error; total failure yields a sentinel
// record so the caller can persist the attempt.
func Run(ctx context.Context, input Input, opts *Options) *Result {
	if opts == nil {
		opts = &Options{}
	}

	result := &Result{}

	for _, attempt := range []func() Outcome{
		func() Outcome { return fromStructuredData(input.RawHTML) },
		func() Outcome { return fromMicrodata(input.RawHTML) },
		func() Outcome { return fromSiteHeuristics(input.RawHTML, input.URL) },
		func() Outcome { return runLLM(ctx, opts, input.URL, llmContent(input)) },
	} {
		outcome := attempt()
		result.Attempts = append(result.Attempts, outcome)
		if opts.Verbose {
			logOutcome(outcome)
		}
		if outcome.Status == StatusOK {
			result.Detail = outcome.Detail
			result.Strategy = outcome.Strategy
			break
		}
	}

	// One retry against the raw page catches postings whose content the
	// cleaner or focuser dropped.
	if result.Detail == nil && opts.Client != nil && len(input.RawHTML) > minRetryHTMLSize {
		outcome := fromLLM(ctx, opts.Client, input.URL, input.RawHTML)
		result.Attempts = append(result.Attempts, outcome)
		if outcome.Status == StatusOK {
			result.Detail = outcome.Detail
			result.Strategy = outcome.Strategy
		}
	}

	if result.Detail == nil {
		result.Detail = NewSentinelDetail()
	}
	if !result.Detail.HasCompany() {
		if company := CompanyFromSlug(input.URL); company != "" {
			result.Detail.Company = company
		}
	}
	result.Detail.normalize()
	return result
}

func runLLM(ctx context.Context, opts *Options, pageURL, content string) Outcome {
	if opts.Client == nil {
		return notFound(StrategyLLM)
	}
	return fromLLM(ctx, opts.Client, pageURL, content)
}

func llmContent(input Input) string {
	if strings.TrimSpace(input.FocusedText) != "" {
		return input.FocusedText
	}
	return input.CleanedText
}

func logOutcome(o Outcome) {
	switch o.Status {
	case StatusOK:
		log.Printf("[EXTRACT] %s: found %q at %q", o.Strategy, o.Detail.Title, o.Detail.Company)
	case StatusNotFound:
		log.Printf("[EXTRACT] %s: no record", o.Strategy)
	case StatusFailed:
		log.Printf("[EXTRACT] %s: %v", o.Strategy, o.Err)
	}
}
