package pipeline

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-assist/internal/classify"
	"github.com/jonathan/apply-assist/internal/company"
	"github.com/jonathan/apply-assist/internal/extract"
	"github.com/jonathan/apply-assist/internal/llm"
)

const detailFixture = `<html><head><title>Platform Engineer - Acme</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"JobPosting","title":"Platform Engineer",
 "hiringOrganization":{"@type":"Organization","name":"Acme"},
 "jobLocation":{"@type":"Place","address":{"addressLocality":"Berlin","addressCountry":"DE"}},
 "description":"Build and run the platform."}
</script></head>
<body><h1>Platform Engineer</h1>
<p>Responsibilities include keeping the platform healthy.</p>
<p>Apply now</p></body></html>`

const loginWallFixture = `<html><head><title>Sign in</title></head>
<body><h1>Welcome back</h1>
<p>Sign in to continue to your account.</p>
<a href="/reset">Forgot password?</a></body></html>`

const errorFixture = `<html><head><title>404</title></head>
<body><p>Page not found.</p></body></html>`

const expiredFixture = `<html><head><title>Job closed</title></head>
<body><p>This job is no longer accepting applications.</p></body></html>`

// fakeSource serves a scripted sequence of pages. Acquire serves the first,
// each Recapture serves the next.
type fakeSource struct {
	pages      []*Page
	acquireErr error
	serveIdx   int
	recaptures int
	closed     bool
}

func (s *fakeSource) Acquire(_ context.Context, url string) (*Page, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	page := s.pages[s.serveIdx]
	if page.URL == "" {
		page.URL = url
	}
	return page, nil
}

func (s *fakeSource) Recapture(_ context.Context) (*Page, error) {
	s.recaptures++
	if s.serveIdx+1 < len(s.pages) {
		s.serveIdx++
	}
	return s.pages[s.serveIdx], nil
}

func (s *fakeSource) Close() { s.closed = true }

type fakeOperator struct {
	challenges []classify.PageType
	err        error
}

func (o *fakeOperator) ResolveChallenge(_ context.Context, challenge classify.PageType, _ string) error {
	o.challenges = append(o.challenges, challenge)
	return o.err
}

type fakeLLM struct {
	calls int
}

func (f *fakeLLM) Generate(context.Context, string, llm.ModelTier, *llm.Options) (string, error) {
	f.calls++
	return "", errors.New("unavailable")
}

func (f *fakeLLM) GetModel(llm.ModelTier) string { return "fake-model" }

func (f *fakeLLM) Close() error { return nil }

func TestBuildDossier_SkipsResearchInWrapUpWindow(t *testing.T) {
	// Extension already spent and only seconds remain, so research is
	// skipped and whatever dossier was on hand is returned.
	now := time.Unix(0, 0)
	d := newDeadline(2*time.Minute, func() time.Time { return now })
	require.True(t, d.Extend())
	now = now.Add(11*time.Minute + 30*time.Second)
	require.True(t, d.InWrapUp())

	client := &fakeLLM{}
	resolution := &company.Resolution{Name: "Acme", Domain: "acme.example.com"}

	dossier, err := buildDossier(context.Background(), context.Background(), &RunOptions{Client: client}, d, resolution)

	require.NoError(t, err)
	assert.Nil(t, dossier)
	assert.Zero(t, client.calls)
}

func TestRunPipeline_DetailPageEndToEnd(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: detailFixture, StatusCode: 200},
	}}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/jobs/4001",
		Source: source,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Classification)
	assert.Equal(t, classify.TypeDetail, result.Classification.Type)
	require.NotNil(t, result.Detail)
	assert.Equal(t, "Platform Engineer", result.Detail.Title)
	assert.Equal(t, "Acme", result.Detail.Company)
	assert.Equal(t, extract.StrategyStructured, result.Strategy)
	require.NotNil(t, result.Resolution)
	assert.Equal(t, "Acme", result.Resolution.Name)
	assert.Empty(t, result.StopReason)
	assert.True(t, source.closed)
}

func TestRunPipeline_LoginWallClearedByOperator(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: loginWallFixture, StatusCode: 200},
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: detailFixture, StatusCode: 200},
	}}
	operator := &fakeOperator{}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL:   "https://boards.greenhouse.io/acme/jobs/4001",
		Source:   source,
		Operator: operator,
	})
	require.NoError(t, err)

	require.Len(t, operator.challenges, 1)
	assert.Equal(t, classify.TypeLoginWall, operator.challenges[0])
	assert.Equal(t, 1, source.recaptures)

	require.NotNil(t, result.Classification)
	assert.Equal(t, classify.TypeDetail, result.Classification.Type)
	require.NotNil(t, result.Detail)
	assert.Equal(t, "Platform Engineer", result.Detail.Title)
}

func TestRunPipeline_LoginWallWithoutOperatorStops(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/login", HTML: loginWallFixture, StatusCode: 200},
	}}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/login",
		Source: source,
	})
	require.Error(t, err)

	var stopErr *StopError
	require.ErrorAs(t, err, &stopErr)
	assert.Equal(t, "recover", stopErr.Stage)

	var recErr *RecoveryError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, classify.TypeLoginWall, recErr.Challenge)
	assert.Nil(t, result.Detail)
}

func TestRunPipeline_OperatorFailureStops(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: loginWallFixture, StatusCode: 200},
	}}
	operator := &fakeOperator{err: errors.New("operator walked away")}

	_, err := RunPipeline(context.Background(), RunOptions{
		JobURL:   "https://boards.greenhouse.io/acme/jobs/4001",
		Source:   source,
		Operator: operator,
	})
	require.Error(t, err)

	var recErr *RecoveryError
	require.ErrorAs(t, err, &recErr)
	assert.ErrorContains(t, recErr.Cause, "walked away")
}

func TestRunPipeline_PersistentChallengeGivesUp(t *testing.T) {
	// Operator signals success but the wall never clears.
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: loginWallFixture, StatusCode: 200},
	}}
	operator := &fakeOperator{}

	_, err := RunPipeline(context.Background(), RunOptions{
		JobURL:   "https://boards.greenhouse.io/acme/jobs/4001",
		Source:   source,
		Operator: operator,
	})
	require.Error(t, err)
	assert.Len(t, operator.challenges, maxRecoveryAttempts)
}

func TestRunPipeline_ErrorPageStops(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/9999", HTML: errorFixture, StatusCode: 404},
	}}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/jobs/9999",
		Source: source,
	})
	require.Error(t, err)

	var stopErr *StopError
	require.ErrorAs(t, err, &stopErr)
	assert.Equal(t, "classify", stopErr.Stage)
	assert.Equal(t, "page is error", result.StopReason)
}

func TestRunPipeline_ExpiredPageStops(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: expiredFixture, StatusCode: 200},
	}}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/jobs/4001",
		Source: source,
	})
	require.Error(t, err)
	assert.Equal(t, "page is expired", result.StopReason)
	require.NotNil(t, result.Classification)
	assert.Equal(t, classify.TypeExpired, result.Classification.Type)
}

func TestRunPipeline_AcquireFailureStops(t *testing.T) {
	source := &fakeSource{acquireErr: errors.New("connection refused")}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/jobs/4001",
		Source: source,
	})
	require.Error(t, err)

	var stopErr *StopError
	require.ErrorAs(t, err, &stopErr)
	assert.Equal(t, "acquire", stopErr.Stage)
	assert.Nil(t, result.Page)
	assert.True(t, source.closed)
}

func TestRunPipeline_HeartbeatStopsOnReturn(t *testing.T) {
	before := runtime.NumGoroutine()
	source := &fakeSource{acquireErr: errors.New("connection refused")}

	_, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/jobs/4001",
		Source: source,
	})
	require.Error(t, err)

	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		time.Second, 10*time.Millisecond, "heartbeat goroutine still running after return")
}

func TestRunPipeline_SentinelRecordIsHardStop(t *testing.T) {
	// Classifies as detail but carries nothing any strategy can extract.
	barren := `<html><head><title>Open position</title></head>
<body><h1></h1><p>Apply now. Requirements listed upon request.</p></body></html>`
	source := &fakeSource{pages: []*Page{
		{URL: "https://example.com/jobs/123", HTML: barren, StatusCode: 200},
	}}

	result, err := RunPipeline(context.Background(), RunOptions{
		JobURL: "https://example.com/jobs/123",
		Source: source,
	})
	require.Error(t, err)

	var stopErr *StopError
	require.ErrorAs(t, err, &stopErr)
	assert.Equal(t, "extract", stopErr.Stage)
	require.NotNil(t, result.Detail)
	assert.Equal(t, extract.SentinelTitle, result.Detail.Title)
	assert.Equal(t, extract.SentinelCompany, result.Detail.Company)
}

func TestRunPipeline_UserCancelStopsBeforeResearch(t *testing.T) {
	source := &fakeSource{pages: []*Page{
		{URL: "https://boards.greenhouse.io/acme/jobs/4001", HTML: detailFixture, StatusCode: 200},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := RunPipeline(ctx, RunOptions{
		JobURL: "https://boards.greenhouse.io/acme/jobs/4001",
		Source: source,
	})
	require.NoError(t, err)

	// Extraction completed before the stop check, research never ran.
	require.NotNil(t, result.Detail)
	assert.Equal(t, "Platform Engineer", result.Detail.Title)
	assert.Nil(t, result.Resolution)
	assert.Equal(t, "stopped by user", result.StopReason)
}

func TestChannelOperator_DoneSignalResolves(t *testing.T) {
	done := make(chan struct{})
	close(done)
	op := &ChannelOperator{Done: done, MaxWait: time.Second}

	err := op.ResolveChallenge(context.Background(), classify.TypeLoginWall, "https://example.com/login")
	assert.NoError(t, err)
}

func TestChannelOperator_TimesOut(t *testing.T) {
	op := &ChannelOperator{Done: make(chan struct{}), MaxWait: 20 * time.Millisecond}

	err := op.ResolveChallenge(context.Background(), classify.TypeCaptchaChallenge, "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not respond")
}

func TestChannelOperator_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op := &ChannelOperator{Done: make(chan struct{}), MaxWait: time.Second}

	err := op.ResolveChallenge(ctx, classify.TypeLoginWall, "https://example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
