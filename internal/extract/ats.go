package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Platform represents a known applicant-tracking-system host.
type Platform string

// Recognized ATS platforms. The origin of these hosts is never the hiring
// company's own site.
const (
	PlatformGreenhouse      Platform = "greenhouse"
	PlatformLever           Platform = "lever"
	PlatformWorkday         Platform = "workday"
	PlatformAshby           Platform = "ashby"
	PlatformWellfound       Platform = "wellfound"
	PlatformSmartRecruiters Platform = "smartrecruiters"
	PlatformUnknown         Platform = "unknown"
)

// DetectPlatform identifies the ATS platform from a URL's hostname.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Host)

	switch {
	case strings.Contains(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.Contains(host, "lever.co"):
		return PlatformLever
	case strings.Contains(host, "workday.com"), strings.Contains(host, "myworkdayjobs.com"):
		return PlatformWorkday
	case strings.Contains(host, "ashbyhq.com"):
		return PlatformAshby
	case strings.Contains(host, "wellfound.com"), strings.Contains(host, "angel.co"):
		return PlatformWellfound
	case strings.Contains(host, "smartrecruiters.com"):
		return PlatformSmartRecruiters
	}
	return PlatformUnknown
}

// IsATSHost reports whether the URL lives on a known ATS platform.
func IsATSHost(urlStr string) bool {
	return DetectPlatform(urlStr) != PlatformUnknown
}

var (
	// "Job Application for Staff Engineer at Acme" (Greenhouse title tag)
	greenhouseTitleRe = regexp.MustCompile(`(?i)^job application for (.+?) at (.+)$`)
	// "Staff Engineer at Acme" / "Staff Engineer - Acme" (og:title patterns)
	titleAtCompanyRe = regexp.MustCompile(`(?i)^(.+?)\s+(?:at|[-–—|])\s+(.+)$`)

	salaryTextRe = regexp.MustCompile(`[$€£]\s?\d{2,3}(?:[,.]\d{3})?[km]?(?:\s?[-–—]\s?[$€£]?\s?\d{2,3}(?:[,.]\d{3})?[km]?)?`)
)

// fromSiteHeuristics applies hand-tuned per-vendor title/company extraction
// from the title tag, og:title, headings, and URL slugs. It only fires on
// known ATS hosts; unknown hosts advance the chain.
func fromSiteHeuristics(rawHTML, pageURL string) Outcome {
	platform := DetectPlatform(pageURL)
	if platform == PlatformUnknown {
		return notFound(StrategySite)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return failed(StrategySite, fmt.Errorf("failed to parse HTML: %w", err))
	}

	titleTag := strings.TrimSpace(doc.Find("title").First().Text())
	ogTitle, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	ogTitle = strings.TrimSpace(ogTitle)
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())

	detail := &JobDetail{}

	switch platform {
	case PlatformGreenhouse:
		if m := greenhouseTitleRe.FindStringSubmatch(titleTag); m != nil {
			detail.Title, detail.Company = m[1], m[2]
		}
	case PlatformLever:
		// Lever og:title reads "{company} - {title}"; the title tag reads
		// "{company} - {title}" as well, so split and swap.
		if m := titleAtCompanyRe.FindStringSubmatch(ogTitle); m != nil {
			detail.Company, detail.Title = m[1], m[2]
		}
	case PlatformWellfound:
		detail.Title = h1
		// Company appears as an anchor to its /company/{slug} profile.
		doc.Find(`a[href^="/company/"], a[href*="wellfound.com/company/"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := strings.TrimSpace(s.Text()); text != "" {
				detail.Company = text
				return false
			}
			return true
		})
	}

	// Generic fallbacks shared by all vendors.
	if detail.Title == "" {
		if m := titleAtCompanyRe.FindStringSubmatch(ogTitle); m != nil {
			detail.Title, detail.Company = m[1], firstNonEmpty(detail.Company, m[2])
		}
	}
	if detail.Title == "" {
		detail.Title = h1
	}
	if detail.Title == "" {
		if m := titleAtCompanyRe.FindStringSubmatch(titleTag); m != nil {
			detail.Title = m[1]
			detail.Company = firstNonEmpty(detail.Company, m[2])
		}
	}
	if detail.Title == "" {
		// Last resort: title-case the final URL path segment.
		detail.Title = slugToTitle(lastPathSegment(pageURL))
	}
	if detail.Company == "" {
		detail.Company = CompanyFromSlug(pageURL)
	}

	if salary := salaryTextRe.FindString(doc.Text()); salary != "" {
		detail.Salary = strings.TrimSpace(salary)
	}
	if detail.Location == "" {
		detail.Location = locationFromMeta(doc)
	}

	if !detailTitleOK(detail) {
		return notFound(StrategySite)
	}
	return found(StrategySite, detail)
}

// CompanyFromSlug derives a company name from vendor-specific URL slug
// conventions. Returns "" when the URL carries no company slug.
func CompanyFromSlug(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	segments := pathSegments(parsed.Path)

	switch DetectPlatform(urlStr) {
	case PlatformGreenhouse, PlatformLever, PlatformAshby, PlatformSmartRecruiters:
		// boards.greenhouse.io/{company}/jobs/{id}, jobs.lever.co/{company}/...
		if len(segments) > 0 {
			return slugToTitle(segments[0])
		}
	case PlatformWorkday:
		// {company}.wd5.myworkdayjobs.com
		host := strings.ToLower(parsed.Host)
		if idx := strings.Index(host, "."); idx > 0 {
			return slugToTitle(host[:idx])
		}
	case PlatformWellfound:
		// wellfound.com/company/{slug}/jobs/...
		for i, seg := range segments {
			if seg == "company" && i+1 < len(segments) {
				return slugToTitle(segments[i+1])
			}
		}
	}
	return ""
}

// slugToTitle converts "backpack-8" or "acme_corp" to "Backpack" / "Acme Corp".
// Pure-numeric segments (profile disambiguators) are dropped.
func slugToTitle(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	var kept []string
	for _, w := range words {
		if isNumeric(w) {
			continue
		}
		kept = append(kept, strings.ToUpper(w[:1])+w[1:])
	}
	return strings.Join(kept, " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pathSegments(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func lastPathSegment(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	segments := pathSegments(parsed.Path)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func locationFromMeta(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="og:locality"]`,
		`meta[name="job-location"]`,
	} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}
