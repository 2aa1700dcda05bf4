package classify

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageFeatures holds everything the scorers read, computed once per page.
// Scoring is pure over these features, so repeated classification of the
// same input is deterministic.
type pageFeatures struct {
	url          *url.URL
	path         string // lowercased
	query        url.Values
	text         string // lowercased page text
	title        string // lowercased <title>
	canonical    string
	linkCount    int
	jobLinkCount int
	hasH1        bool
	hasJSONLDJob bool
	statusCode   int
}

var (
	jobDetailPathRe = regexp.MustCompile(`/(jobs?|careers?|positions?|openings?|vacanc(?:y|ies)|apply)/[^/]+`)
	jobLinkPathRe   = regexp.MustCompile(`/(jobs?|careers?|positions?|openings?|vacanc(?:y|ies)|apply)(/|$)`)
	salaryRe        = regexp.MustCompile(`[$€£]\s?\d{2,3}[,.]?\d{0,3}\s?[km]?`)
)

func extractFeatures(htmlContent, pageURL string, statusCode int) (*pageFeatures, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	f := &pageFeatures{
		url:        parsed,
		path:       strings.ToLower(parsed.Path),
		query:      parsed.Query(),
		text:       strings.ToLower(doc.Text()),
		title:      strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text())),
		statusCode: statusCode,
		hasH1:      doc.Find("h1").Length() > 0,
	}

	f.canonical, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		f.linkCount++
		href, _ := s.Attr("href")
		if jobLinkPathRe.MatchString(strings.ToLower(href)) {
			f.jobLinkCount++
		}
	})

	// JSON-LD markers survive only in raw HTML, but checking costs nothing
	// and is a strong detail signal when the caller passes raw input.
	f.hasJSONLDJob = strings.Contains(htmlContent, `"JobPosting"`)

	return f, nil
}

// scorer accumulates a score in [0,1] from weighted boolean signals for one
// candidate page type.
type scorer struct {
	pageType PageType
	score    func(f *pageFeatures) (float64, []string)
}

// add applies one weighted boolean signal.
func add(score *float64, signals *[]string, cond bool, weight float64, name string) {
	if cond {
		*score += weight
		*signals = append(*signals, name)
	}
}

func containsAny(text string, phrases ...string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

// scorers lists one scorer per candidate type, in precedence order.
// When scores tie, the earlier entry wins, so recovery and terminal states
// (captcha, login, error, expired) outrank content types.
var scorers = []scorer{
	{TypeCaptchaChallenge, scoreCaptcha},
	{TypeLoginWall, scoreLoginWall},
	{TypeError, scoreError},
	{TypeExpired, scoreExpired},
	{TypeDetail, scoreDetail},
	{TypeExternalApply, scoreExternalApply},
	{TypeCompanyCareers, scoreCompanyCareers},
	{TypeCategoryListing, scoreCategoryListing},
	{TypeListing, scoreListing},
	{TypePagination, scorePagination},
	{TypeSearchLanding, scoreSearchLanding},
	{TypeDuplicateCanonical, scoreDuplicateCanonical},
}

func scoreCaptcha(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	phrase, hit := containsAny(f.text,
		"verify you are human", "verify that you are human", "unusual traffic",
		"complete the security check", "are you a robot", "press and hold")
	add(&score, &signals, hit, 0.6, "captcha:phrase:"+phrase)
	add(&score, &signals, strings.Contains(f.text, "captcha"), 0.3, "captcha:keyword")
	add(&score, &signals, strings.Contains(f.text, "cloudflare") && strings.Contains(f.text, "checking"), 0.3, "captcha:cloudflare-check")
	add(&score, &signals, f.statusCode == http.StatusForbidden, 0.2, "captcha:status-403")
	return clamp(score), signals
}

func scoreLoginWall(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	phrase, hit := containsAny(f.text,
		"sign in to continue", "log in to continue", "sign in to view",
		"log in to view", "create an account to", "join to view", "member login")
	add(&score, &signals, hit, 0.6, "login:phrase:"+phrase)
	_, pathHit := containsAny(f.path, "/login", "/signin", "/sign-in", "/auth")
	add(&score, &signals, pathHit, 0.4, "login:url-path")
	add(&score, &signals, strings.Contains(f.text, "forgot password"), 0.2, "login:forgot-password")
	add(&score, &signals, f.statusCode == http.StatusUnauthorized, 0.3, "login:status-401")
	return clamp(score), signals
}

func scoreError(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	add(&score, &signals, f.statusCode >= 500, 0.7, "error:status-5xx")
	add(&score, &signals, f.statusCode == http.StatusNotFound || f.statusCode == http.StatusGone, 0.6, "error:status-404")
	phrase, hit := containsAny(f.text, "page not found", "404 not found", "something went wrong", "an error occurred")
	add(&score, &signals, hit, 0.4, "error:phrase:"+phrase)
	add(&score, &signals, strings.Contains(f.title, "404"), 0.2, "error:title-404")
	return clamp(score), signals
}

func scoreExpired(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	phrase, hit := containsAny(f.text,
		"no longer accepting applications", "this job is no longer available",
		"position has been filled", "this posting has expired", "job has expired",
		"this job has closed", "applications are closed")
	add(&score, &signals, hit, 0.8, "expired:phrase:"+phrase)
	add(&score, &signals, f.statusCode == http.StatusGone, 0.3, "expired:status-410")
	return clamp(score), signals
}

func scoreDetail(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	add(&score, &signals, jobDetailPathRe.MatchString(f.path), 0.3, "detail:url-path")
	add(&score, &signals, f.hasJSONLDJob, 0.4, "detail:jsonld-jobposting")
	phrase, hit := containsAny(f.text, "apply now", "apply for this job", "submit your application", "apply for this position")
	add(&score, &signals, hit, 0.2, "detail:apply-phrase:"+phrase)
	_, sectionHit := containsAny(f.text, "responsibilities", "requirements", "qualifications", "what you'll do")
	add(&score, &signals, sectionHit, 0.2, "detail:section-keywords")
	add(&score, &signals, salaryRe.MatchString(f.text), 0.1, "detail:salary-pattern")
	add(&score, &signals, f.hasH1 && f.linkCount < 60, 0.1, "detail:low-link-density")
	return clamp(score), signals
}

func scoreExternalApply(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	phrase, hit := containsAny(f.text, "apply on company site", "apply on company website", "apply externally", "you are being redirected")
	add(&score, &signals, hit, 0.6, "external:phrase:"+phrase)
	add(&score, &signals, f.query.Get("redirect") != "" || f.query.Get("url") != "", 0.3, "external:redirect-param")
	return clamp(score), signals
}

func scoreCompanyCareers(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	_, pathHit := containsAny(f.path, "/careers", "/jobs", "/join-us", "/work-with-us")
	endsAtCareers := pathHit && !jobDetailPathRe.MatchString(f.path)
	add(&score, &signals, endsAtCareers, 0.3, "careers:url-path")
	phrase, hit := containsAny(f.text, "join our team", "why work at", "life at", "our culture", "open roles", "working at")
	add(&score, &signals, hit, 0.3, "careers:phrase:"+phrase)
	add(&score, &signals, f.jobLinkCount >= 2 && f.jobLinkCount < 30, 0.2, "careers:some-job-links")
	add(&score, &signals, strings.Contains(f.title, "careers"), 0.2, "careers:title")
	return clamp(score), signals
}

func scoreCategoryListing(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	categoryPath := regexp.MustCompile(`/jobs?/(?:category|department|team|location)s?/`).MatchString(f.path)
	add(&score, &signals, categoryPath, 0.5, "category:url-path")
	phrase, hit := containsAny(f.text, "jobs in", "roles in", "positions in")
	add(&score, &signals, hit && f.jobLinkCount >= 3, 0.3, "category:phrase:"+phrase)
	add(&score, &signals, f.jobLinkCount >= 5, 0.2, "category:job-links")
	return clamp(score), signals
}

func scoreListing(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	add(&score, &signals, f.jobLinkCount >= 5, 0.4, "listing:many-job-links")
	listingPath := strings.HasSuffix(f.path, "/jobs") || strings.HasSuffix(f.path, "/careers") ||
		strings.HasSuffix(f.path, "/openings") || strings.HasSuffix(f.path, "/positions")
	add(&score, &signals, listingPath, 0.2, "listing:url-path")
	phrase, hit := containsAny(f.text, "open positions", "current openings", "all jobs", "job openings")
	add(&score, &signals, hit, 0.25, "listing:phrase:"+phrase)
	add(&score, &signals, f.linkCount > 40 && f.jobLinkCount > 10, 0.15, "listing:high-link-density")
	return clamp(score), signals
}

func scorePagination(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	paged := f.query.Get("page") != "" || f.query.Get("p") != "" || f.query.Get("offset") != ""
	add(&score, &signals, paged, 0.5, "pagination:query-param")
	phrase, hit := containsAny(f.text, "next page", "previous page", "page 2 of")
	add(&score, &signals, hit, 0.2, "pagination:phrase:"+phrase)
	add(&score, &signals, paged && f.jobLinkCount >= 3, 0.2, "pagination:job-links")
	return clamp(score), signals
}

func scoreSearchLanding(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	searching := f.query.Get("q") != "" || f.query.Get("query") != "" || f.query.Get("search") != "" ||
		strings.Contains(f.path, "/search")
	add(&score, &signals, searching, 0.4, "search:url")
	phrase, hit := containsAny(f.text, "search results", "results for", "refine your search", "no results found")
	add(&score, &signals, hit, 0.3, "search:phrase:"+phrase)
	return clamp(score), signals
}

func scoreDuplicateCanonical(f *pageFeatures) (float64, []string) {
	var score float64
	var signals []string
	if f.canonical == "" {
		return 0, nil
	}
	canonical, err := url.Parse(f.canonical)
	if err != nil || canonical.Host == "" {
		return 0, nil
	}
	samePage := strings.EqualFold(canonical.Host, f.url.Host) &&
		strings.TrimSuffix(canonical.Path, "/") == strings.TrimSuffix(f.url.Path, "/")
	add(&score, &signals, !samePage, 0.7, "duplicate:canonical-differs")
	return clamp(score), signals
}

func clamp(score float64) float64 {
	if score > 1 {
		return 1
	}
	return score
}
