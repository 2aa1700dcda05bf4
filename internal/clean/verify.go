package clean

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CoverageThreshold is the minimum fraction of raw-page signals that must
// survive cleaning before the result is trusted without review.
const CoverageThreshold = 0.8

// sectionMarkers are phrases whose presence in the raw page marks a section
// the extractor depends on. Cleaning must not lose them.
var sectionMarkers = []string{
	"responsibilities",
	"requirements",
	"qualifications",
	"about the job",
	"about the role",
	"what you'll do",
	"what you will do",
	"who you are",
	"benefits",
	"compensation",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Verification reports whether cleaning preserved the raw page's signal.
type Verification struct {
	Coverage             float64  `json:"coverage"`
	CheckedSignals       int      `json:"checked_signals"`
	LostSignals          []string `json:"lost_signals,omitempty"`
	ManualReviewRequired bool     `json:"manual_review_required"`
}

// Verify independently re-scans the raw HTML for headings, the page title,
// and section-marker keywords, and confirms each survives in the cleaned
// output. Cleaning is aggressive; a silently over-cleaned page breaks every
// downstream stage, so a low coverage ratio or any lost heading flags the
// result for review.
func Verify(rawHTML, cleanedHTML string) (*Verification, error) {
	rawDoc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse raw HTML: %w", err)
	}

	cleanedNorm := normalize(cleanedHTML)
	rawTextNorm := normalize(rawDoc.Text())

	type signal struct {
		name      string
		text      string
		highValue bool
	}
	var signals []signal

	if title := strings.TrimSpace(rawDoc.Find("title").First().Text()); title != "" {
		signals = append(signals, signal{name: "title: " + title, text: title, highValue: true})
	}

	rawDoc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		signals = append(signals, signal{name: "heading: " + text, text: text, highValue: true})
	})

	for _, marker := range sectionMarkers {
		if strings.Contains(rawTextNorm, marker) {
			signals = append(signals, signal{name: "section: " + marker, text: marker})
		}
	}

	v := &Verification{CheckedSignals: len(signals)}
	if len(signals) == 0 {
		v.Coverage = 1.0
		return v, nil
	}

	survived := 0
	lostHighValue := false
	for _, sig := range signals {
		if strings.Contains(cleanedNorm, normalize(sig.text)) {
			survived++
			continue
		}
		v.LostSignals = append(v.LostSignals, sig.name)
		if sig.highValue {
			lostHighValue = true
		}
	}

	v.Coverage = float64(survived) / float64(len(signals))
	v.ManualReviewRequired = v.Coverage < CoverageThreshold || lostHighValue
	return v, nil
}

// normalize lowercases and collapses whitespace so signal matching is not
// defeated by serialization differences between raw and cleaned HTML.
func normalize(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(s), " ")
}
