// Package clean reduces raw page HTML to extraction-ready content and
// verifies that the reduction did not destroy signal the rest of the
// pipeline depends on.
package clean

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelector matches elements that carry no job content: code, styling,
// media, interactive controls, and navigation chrome.
const noiseSelector = "script, style, noscript, template, iframe, svg, img, picture, video, audio, canvas, object, embed, button, input, select, textarea, form, nav, footer, aside"

// keptMetaNames are the meta name/property values preserved by cleaning.
var keptMetaNames = map[string]bool{
	"description":    true,
	"title":          true,
	"og:url":         true,
	"og:title":       true,
	"og:description": true,
}

// Result holds the cleaned document and what cleaning did to it.
type Result struct {
	HTML            string `json:"html"`
	OriginalSize    int    `json:"original_size"`
	CleanedSize     int    `json:"cleaned_size"`
	ElementsRemoved int    `json:"elements_removed"`
}

// HTML strips noise elements and styling/tracking attributes from raw page
// HTML while preserving the canonical link, url/title/description metadata,
// anchor hrefs, headings, and body text.
func HTML(rawHTML string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	removed := 0

	noise := doc.Find(noiseSelector)
	removed += noise.Length()
	noise.Remove()

	// Drop stylesheet/preload links; keep only the canonical link.
	doc.Find("link").Each(func(_ int, s *goquery.Selection) {
		if rel, _ := s.Attr("rel"); !strings.EqualFold(rel, "canonical") {
			removed++
			s.Remove()
		}
	})

	// Drop tracking/analytics meta tags; keep url/title/description.
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		if keptMetaNames[strings.ToLower(name)] || keptMetaNames[strings.ToLower(property)] {
			return
		}
		removed++
		s.Remove()
	})

	// Strip styling and tracking attributes from everything that remains.
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			node.Attr = filterAttrs(node)
		}
	})

	cleaned, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render cleaned HTML: %w", err)
	}

	return &Result{
		HTML:            cleaned,
		OriginalSize:    len(rawHTML),
		CleanedSize:     len(cleaned),
		ElementsRemoved: removed,
	}, nil
}

// filterAttrs keeps only the attributes downstream extraction reads:
// hrefs on anchors and the canonical link, and name/property/content/rel
// on metadata tags. Everything else (class, style, data-*, on*) is noise.
func filterAttrs(node *html.Node) []html.Attribute {
	tag := strings.ToLower(node.Data)
	kept := make([]html.Attribute, 0, len(node.Attr))
	for _, attr := range node.Attr {
		key := strings.ToLower(attr.Key)
		switch tag {
		case "a", "link":
			if key == "href" || key == "rel" {
				kept = append(kept, attr)
			}
		case "meta":
			if key == "name" || key == "property" || key == "content" || key == "charset" {
				kept = append(kept, attr)
			}
		case "time":
			if key == "datetime" {
				kept = append(kept, attr)
			}
		default:
			// itemtype/itemprop survive so microdata extraction still works
			if key == "itemtype" || key == "itemprop" || key == "itemscope" {
				kept = append(kept, attr)
			}
		}
	}
	return kept
}
