// Package pipeline orchestrates the full analysis of one job URL: page
// acquisition, classification, human recovery, link resolution, cleaning,
// focusing, record extraction, and company research, all under one time
// budget.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/apply-assist/internal/classify"
	"github.com/jonathan/apply-assist/internal/clean"
	"github.com/jonathan/apply-assist/internal/company"
	"github.com/jonathan/apply-assist/internal/db"
	"github.com/jonathan/apply-assist/internal/extract"
	"github.com/jonathan/apply-assist/internal/fetch"
	"github.com/jonathan/apply-assist/internal/focus"
	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/observability"
	"github.com/jonathan/apply-assist/internal/resolve"
	"github.com/jonathan/apply-assist/internal/schemas"
)

// extendThreshold is how little budget may remain before research for the
// single extension to be claimed.
const extendThreshold = 5 * time.Minute

// heartbeatInterval paces the progress log line during long stages.
const heartbeatInterval = 30 * time.Second

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// StopError is a hard stop: the run cannot produce a job record and ends
// with whatever was persisted so far.
type StopError struct {
	Stage  string
	Reason string
	Cause  error
}

func (e *StopError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *StopError) Unwrap() error {
	return e.Cause
}

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	JobURL        string
	Source        PageSource
	Client        llm.Client
	Embedder      llm.Embedder
	Operator      Operator
	Searcher      company.Discoverer
	Database      *db.DB
	ArtifactDir   string
	ResearchPages int
	BaseDeadline  time.Duration
	Verbose       bool
	OnProgress    ProgressCallback
}

// RunResult is everything a completed (or degraded) run produced.
type RunResult struct {
	RunID          uuid.UUID
	Page           *Page
	Classification *classify.Classification
	Verification   *clean.Verification
	Detail         *extract.JobDetail
	Strategy       extract.Strategy
	Resolution     *company.Resolution
	Dossier        *company.Dossier
	StopReason     string
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, step, message string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Step: step, Message: message, Content: content})
	}
}

// RunPipeline analyzes one job URL end to end. It always returns a result
// carrying whatever stages completed; the error reports why a run stopped
// short of a full record.
func RunPipeline(ctx context.Context, opts RunOptions) (*RunResult, error) {
	printer := observability.NewPrinter(os.Stdout)
	result := &RunResult{}

	deadline := NewDeadline(opts.BaseDeadline)
	runCtx, cancel := deadline.Context(ctx)
	defer cancel()
	defer opts.Source.Close()

	// Heartbeat keeps long stages visible and confirms the run is alive.
	stage := newStageTracker()
	g, hbCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return nil
			case <-ticker.C:
				log.Printf("[PIPELINE] heartbeat: stage=%s elapsed=%s remaining=%s",
					stage.get(), deadline.Elapsed().Round(time.Second), deadline.Remaining().Round(time.Second))
			}
		}
	})
	defer func() {
		cancel()
		_ = g.Wait()
	}()

	var runID uuid.UUID
	if opts.Database != nil {
		var err error
		runID, err = opts.Database.CreateRun(ctx, opts.JobURL)
		if err != nil {
			fmt.Printf("Warning: Failed to create database run: %v\n", err)
		}
		result.RunID = runID
	}
	sink := &artifactSink{database: opts.Database, runID: runID, dir: opts.ArtifactDir}

	finish := func(status, reason string) {
		result.StopReason = reason
		if opts.Database != nil && runID != uuid.Nil {
			// Persistence uses the parent context so the wrap-up window
			// survives budget expiry.
			wrapCtx, wrapCancel := context.WithTimeout(context.WithoutCancel(ctx), WrapUpWindow)
			defer wrapCancel()
			_ = opts.Database.CompleteRun(wrapCtx, runID, status, reason)
		}
	}

	// Step 1: acquire the page.
	stage.set("acquire")
	fmt.Printf("Step 1/6: Acquiring page: %s...\n", opts.JobURL)
	page, err := opts.Source.Acquire(runCtx, opts.JobURL)
	if err != nil {
		finish(db.RunStatusFailed, "page acquisition failed")
		return result, &StopError{Stage: "acquire", Reason: "page acquisition failed", Cause: err}
	}
	result.Page = page
	sink.saveText(ctx, db.StepRawPage, page.HTML)
	emitProgress(&opts, db.StepRawPage, fmt.Sprintf("Acquired %d bytes from %s", len(page.HTML), page.URL), nil)

	// Step 2: classify, with human recovery for login walls and captchas.
	stage.set("classify")
	fmt.Printf("Step 2/6: Classifying page...\n")
	classification, err := classifyPage(runCtx, page, opts)
	if err != nil {
		finish(db.RunStatusFailed, "classification failed")
		return result, &StopError{Stage: "classify", Reason: "classification failed", Cause: err}
	}

	for attempt := 0; classify.NeedsHumanRecovery(classification.Type); attempt++ {
		if opts.Operator == nil || attempt >= maxRecoveryAttempts {
			recErr := &RecoveryError{Challenge: classification.Type, URL: page.URL}
			finish(db.RunStatusFailed, string(classification.Type)+" not cleared")
			return result, &StopError{Stage: "recover", Reason: "page requires human recovery", Cause: recErr}
		}
		fmt.Printf("Page is a %s, waiting for operator...\n", classification.Type)
		if err := opts.Operator.ResolveChallenge(runCtx, classification.Type, page.URL); err != nil {
			recErr := &RecoveryError{Challenge: classification.Type, URL: page.URL, Cause: err}
			finish(db.RunStatusFailed, string(classification.Type)+" not cleared")
			return result, &StopError{Stage: "recover", Reason: "operator recovery failed", Cause: recErr}
		}
		page, err = opts.Source.Recapture(runCtx)
		if err != nil {
			finish(db.RunStatusFailed, "recapture failed")
			return result, &StopError{Stage: "recover", Reason: "recapture after recovery failed", Cause: err}
		}
		result.Page = page
		sink.saveText(ctx, db.StepRawPage, page.HTML)
		classification, err = classifyPage(runCtx, page, opts)
		if err != nil {
			finish(db.RunStatusFailed, "classification failed")
			return result, &StopError{Stage: "classify", Reason: "classification failed", Cause: err}
		}
	}

	result.Classification = classification
	if opts.Verbose {
		printer.PrintClassification(classification)
	}
	sink.save(ctx, db.StepClassification, classification)
	emitProgress(&opts, db.StepClassification, fmt.Sprintf("Page classified as %s (%.2f)", classification.Type, classification.Confidence), classification)

	switch classification.Type {
	case classify.TypeError, classify.TypeExpired, classify.TypeIrrelevant:
		finish(db.RunStatusStopped, "page is "+string(classification.Type))
		return result, &StopError{Stage: "classify", Reason: "page is " + string(classification.Type)}
	}

	// Step 3: walk down to the job detail page when we landed on a listing.
	if followableType(classification.Type) {
		stage.set("resolve")
		fmt.Printf("Step 3/6: Resolving job detail link from %s page...\n", classification.Type)
		resolved, err := resolve.JobDetail(runCtx, page.URL, page.HTML, classification, &resolve.Options{
			Fetcher:    httpFetcher{},
			Classifier: pageClassifier{opts: &opts},
			Verbose:    opts.Verbose,
		})
		if err != nil {
			finish(db.RunStatusStopped, "no job detail page reachable")
			return result, &StopError{Stage: "resolve", Reason: "no job detail page reachable", Cause: err}
		}
		page = &Page{URL: resolved.URL, HTML: resolved.HTML, StatusCode: 200}
		classification = resolved.Classification
		result.Page = page
		result.Classification = classification
		sink.saveText(ctx, db.StepRawPage, page.HTML)
		emitProgress(&opts, db.StepClassification, "Resolved job detail page: "+page.URL, nil)
	} else {
		fmt.Printf("Step 3/6: Page is already a %s, no resolution needed.\n", classification.Type)
	}

	// Step 4: clean, verify, and focus the content.
	stage.set("clean")
	fmt.Printf("Step 4/6: Cleaning and focusing content...\n")
	cleaned, err := clean.HTML(page.HTML)
	if err != nil {
		finish(db.RunStatusFailed, "cleaning failed")
		return result, &StopError{Stage: "clean", Reason: "cleaning failed", Cause: err}
	}
	if verification, err := clean.Verify(page.HTML, cleaned.HTML); err == nil {
		result.Verification = verification
		if verification.ManualReviewRequired {
			log.Printf("[PIPELINE] cleaning lost %d signals (coverage %.2f), flagging for manual review",
				len(verification.LostSignals), verification.Coverage)
		}
	}
	sink.saveText(ctx, db.StepCleanedPage, cleaned.HTML)

	cleanedText := textOf(cleaned.HTML)
	focusedText := ""
	if opts.Client != nil && opts.Embedder != nil && runCtx.Err() == nil {
		doc, err := focus.Build(runCtx, cleaned.HTML, focus.Options{
			Client:   opts.Client,
			Embedder: opts.Embedder,
			Verbose:  opts.Verbose,
		})
		if err != nil {
			log.Printf("[PIPELINE] focusing failed, continuing with cleaned text: %v", err)
		} else {
			focusedText = doc.Text
			sink.saveText(ctx, db.StepFocusedContent, focusedText)
			sink.save(ctx, db.StepChunkScores, doc.Ranked)
		}
	}

	// Step 5: extract the job record.
	stage.set("extract")
	fmt.Printf("Step 5/6: Extracting job record...\n")
	extraction := extract.Run(runCtx, extract.Input{
		URL:         page.URL,
		RawHTML:     page.HTML,
		CleanedText: cleanedText,
		FocusedText: focusedText,
	}, &extract.Options{Client: opts.Client, Verbose: opts.Verbose})
	result.Detail = extraction.Detail
	result.Strategy = extraction.Strategy
	if opts.Verbose {
		printer.PrintJobDetail(extraction.Detail, extraction.Strategy)
	}
	if data, err := json.Marshal(extraction.Detail); err == nil {
		if err := schemas.ValidateJobRecord(data); err != nil {
			log.Printf("[PIPELINE] job record failed schema validation: %v", err)
		}
	}
	sink.save(ctx, db.StepJobRecord, extraction.Detail)
	if !extraction.Detail.HasTitle() && !extraction.Detail.HasCompany() {
		finish(db.RunStatusFailed, "no job record extracted")
		return result, &StopError{Stage: "extract", Reason: "extraction exhausted with no usable record"}
	}
	if opts.Database != nil && runID != uuid.Nil {
		_ = opts.Database.UpdateRunResult(ctx, runID, extraction.Detail.Company, extraction.Detail.Title)
	}
	emitProgress(&opts, db.StepJobRecord,
		fmt.Sprintf("Extracted %q at %q via %s", extraction.Detail.Title, extraction.Detail.Company, extraction.Strategy),
		extraction.Detail)

	// Step 6: resolve the company and build its dossier.
	stage.set("research")
	fmt.Printf("Step 6/6: Researching company...\n")
	if stopped, reason := runStopped(ctx, runCtx, deadline); stopped {
		finish(db.RunStatusStopped, reason)
		return result, nil
	}

	resolution := company.Resolve(runCtx, company.ResolveInput{
		Company:     extraction.Detail.Company,
		PageURL:     page.URL,
		Title:       extraction.Detail.Title,
		Description: extraction.Detail.Description,
	}, opts.Client)
	result.Resolution = resolution
	sink.save(ctx, db.StepResolution, resolution)

	if resolution.Name == "" {
		finish(db.RunStatusCompleted, "company could not be resolved")
		return result, nil
	}

	dossier, err := buildDossier(runCtx, ctx, &opts, deadline, resolution)
	if err != nil {
		log.Printf("[PIPELINE] research incomplete: %v", err)
	}
	result.Dossier = dossier
	if dossier != nil {
		if opts.Verbose {
			printer.PrintDossier(dossier)
		}
		sink.save(ctx, db.StepDossier, dossier)
		if opts.Database != nil && runID != uuid.Nil {
			if data, err := json.Marshal(dossier); err == nil {
				_ = opts.Database.UpsertDossier(ctx, dossier.Company, dossier.Domain, data)
			}
		}
	}

	if stopped, reason := runStopped(ctx, runCtx, deadline); stopped {
		finish(db.RunStatusStopped, reason)
		return result, nil
	}
	finish(db.RunStatusCompleted, "")
	fmt.Printf("Done! Analysis complete for %s.\n", opts.JobURL)
	return result, nil
}

// buildDossier reuses a fresh stored dossier or runs a bounded research
// pass, claiming the deadline extension when the budget is nearly spent.
func buildDossier(runCtx, parent context.Context, opts *RunOptions, deadline *Deadline, resolution *company.Resolution) (*company.Dossier, error) {
	var existing *company.Dossier
	if opts.Database != nil {
		record, err := opts.Database.LookupDossier(parent, resolution.Name, resolution.Domain)
		if err != nil {
			log.Printf("[PIPELINE] dossier lookup failed: %v", err)
		} else if record != nil {
			var stored company.Dossier
			if err := json.Unmarshal(record.Dossier, &stored); err == nil {
				if record.Fresh(time.Now()) {
					if opts.Verbose {
						log.Printf("[VERBOSE] Reusing fresh dossier for %s (updated %s)", stored.Company, record.UpdatedAt.Format(time.RFC3339))
					}
					return &stored, nil
				}
				existing = &stored
			}
		}
	}

	if opts.Client == nil {
		return existing, nil
	}

	if deadline.Remaining() < extendThreshold && deadline.Extend() {
		log.Printf("[PIPELINE] deadline extended by %s for company research", Extension)
	}
	if deadline.InWrapUp() {
		log.Printf("[PIPELINE] inside wrap-up window, skipping company research")
		return existing, nil
	}

	return company.Research(runCtx, company.ResearchOptions{
		Resolution: resolution,
		Dossier:    existing,
		MaxPages:   opts.ResearchPages,
		Fetcher:    httpFetcher{},
		Client:     opts.Client,
		Searcher:   opts.Searcher,
		Verbose:    opts.Verbose,
	})
}

func classifyPage(ctx context.Context, page *Page, opts RunOptions) (*classify.Classification, error) {
	return classify.Page(ctx, classify.Input{
		HTML:       page.HTML,
		URL:        page.URL,
		StatusCode: page.StatusCode,
	}, classify.Options{UseLLM: opts.Client != nil, Client: opts.Client})
}

func followableType(t classify.PageType) bool {
	switch t {
	case classify.TypeListing, classify.TypeCategoryListing, classify.TypeCompanyCareers,
		classify.TypePagination, classify.TypeSearchLanding, classify.TypeDuplicateCanonical:
		return true
	}
	return false
}

// runStopped distinguishes a user stop from budget expiry.
func runStopped(parent, runCtx context.Context, deadline *Deadline) (bool, string) {
	if parent.Err() != nil {
		return true, "stopped by user"
	}
	if runCtx.Err() != nil || deadline.Remaining() == 0 {
		return true, "time budget exhausted"
	}
	return false, ""
}

// textOf flattens HTML to whitespace-normalized visible text.
func textOf(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// httpFetcher adapts the fetch package to the resolver and researcher.
type httpFetcher struct{}

func (httpFetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	result, err := fetch.URL(ctx, url, nil)
	if err != nil {
		return "", "", err
	}
	return result.HTML, result.FinalURL, nil
}

// pageClassifier adapts classification for the resolver.
type pageClassifier struct {
	opts *RunOptions
}

func (c pageClassifier) Classify(ctx context.Context, html, url string) (*classify.Classification, error) {
	return classifyPage(ctx, &Page{URL: url, HTML: html, StatusCode: 200}, *c.opts)
}
