package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fromMicrodata pulls JobPosting fields from itemprop-tagged elements
// inside an itemtype=".../JobPosting" scope.
func fromMicrodata(rawHTML string) Outcome {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return failed(StrategyMicrodata, fmt.Errorf("failed to parse HTML: %w", err))
	}

	scope := doc.Find(`[itemtype$="JobPosting"], [itemtype$="JobPosting/"]`).First()
	if scope.Length() == 0 {
		return notFound(StrategyMicrodata)
	}

	prop := func(name string) string {
		return itempropValue(scope, name)
	}

	detail := &JobDetail{
		Title:          firstNonEmpty(prop("title"), prop("name")),
		Description:    prop("description"),
		PostedDate:     prop("datePosted"),
		EmploymentType: prop("employmentType"),
	}

	// hiringOrganization is usually its own nested scope with a name.
	org := scope.Find(`[itemprop="hiringOrganization"]`).First()
	if org.Length() > 0 {
		detail.Company = firstNonEmpty(itempropValue(org, "name"), elementValue(org))
	}

	locality := prop("addressLocality")
	region := prop("addressRegion")
	country := prop("addressCountry")
	var parts []string
	for _, p := range []string{locality, region, country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	detail.Location = strings.Join(parts, ", ")

	if quals := prop("qualifications"); quals != "" {
		detail.Requirements = splitLines(quals)
	}

	if !detailTitleOK(detail) {
		return notFound(StrategyMicrodata)
	}
	return found(StrategyMicrodata, detail)
}

// itempropValue reads the first matching itemprop inside scope, preferring
// meta content attributes over element text.
func itempropValue(scope *goquery.Selection, name string) string {
	sel := scope.Find(`[itemprop="` + name + `"]`).First()
	if sel.Length() == 0 {
		return ""
	}
	return elementValue(sel)
}

func elementValue(sel *goquery.Selection) string {
	if content, ok := sel.Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	if datetime, ok := sel.Attr("datetime"); ok {
		return strings.TrimSpace(datetime)
	}
	return strings.TrimSpace(sel.Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
