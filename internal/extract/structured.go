package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fromStructuredData parses every embedded JSON-LD block in the raw HTML
// and maps the first JobPosting object (including ones nested in @graph
// arrays) onto a JobDetail.
func fromStructuredData(rawHTML string) Outcome {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return failed(StrategyStructured, fmt.Errorf("failed to parse HTML: %w", err))
	}

	var posting map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var parsed any
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return true // malformed block, keep scanning
		}
		if p := findJobPosting(parsed); p != nil {
			posting = p
			return false
		}
		return true
	})

	if posting == nil {
		return notFound(StrategyStructured)
	}

	detail := &JobDetail{
		Title:          jsonString(posting["title"]),
		Description:    stripTags(jsonString(posting["description"])),
		PostedDate:     jsonString(posting["datePosted"]),
		Deadline:       jsonString(posting["validThrough"]),
		EmploymentType: jsonString(posting["employmentType"]),
		ApplyURL:       jsonString(posting["url"]),
	}

	if org, ok := posting["hiringOrganization"].(map[string]any); ok {
		detail.Company = jsonString(org["name"])
	}

	detail.Location = structuredLocation(posting["jobLocation"])
	if jsonString(posting["jobLocationType"]) == "TELECOMMUTE" {
		detail.RemoteType = "remote"
	}
	detail.Salary = structuredSalary(posting["baseSalary"])

	if quals := stripTags(jsonString(posting["qualifications"])); quals != "" {
		detail.Requirements = splitLines(quals)
	}

	if !detailTitleOK(detail) {
		return notFound(StrategyStructured)
	}
	return found(StrategyStructured, detail)
}

// findJobPosting walks a decoded JSON-LD value looking for an object whose
// @type is (or includes) JobPosting. Arrays and @graph nests are searched
// depth-first; the first match wins.
func findJobPosting(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		if hasType(v, "JobPosting") {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findJobPosting(graph)
		}
	case []any:
		for _, item := range v {
			if p := findJobPosting(item); p != nil {
				return p
			}
		}
	}
	return nil
}

// hasType handles both "@type": "JobPosting" and "@type": ["JobPosting", ...].
func hasType(obj map[string]any, want string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func structuredLocation(value any) string {
	loc := firstObject(value)
	if loc == nil {
		return jsonString(value)
	}
	address := firstObject(loc["address"])
	if address == nil {
		return jsonString(loc["name"])
	}
	parts := []string{
		jsonString(address["addressLocality"]),
		jsonString(address["addressRegion"]),
		jsonString(address["addressCountry"]),
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func structuredSalary(value any) string {
	salary := firstObject(value)
	if salary == nil {
		return ""
	}
	currency := jsonString(salary["currency"])
	spec := firstObject(salary["value"])
	if spec == nil {
		return ""
	}
	minVal := jsonNumber(spec["minValue"])
	maxVal := jsonNumber(spec["maxValue"])
	single := jsonNumber(spec["value"])
	unit := strings.ToLower(jsonString(spec["unitText"]))

	var text string
	switch {
	case minVal != "" && maxVal != "":
		text = minVal + " - " + maxVal
	case single != "":
		text = single
	default:
		return ""
	}
	if currency != "" {
		text = currency + " " + text
	}
	if unit != "" {
		text += " per " + unit
	}
	return text
}

// firstObject unwraps arrays and returns value as an object, or nil.
func firstObject(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

func jsonString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func jsonNumber(value any) string {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// stripTags drops HTML markup from a structured-data string field.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func detailTitleOK(d *JobDetail) bool {
	d.normalize()
	return d.HasTitle()
}
