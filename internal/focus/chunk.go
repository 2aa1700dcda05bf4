// Package focus reduces a cleaned job page to the chunks that matter:
// an embedding-similarity prefilter followed by a sequential LLM ranking
// pass that carries forward a memory of which core fields have been seen.
package focus

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MinChunkChars merges adjacent blocks until a chunk reaches this size.
	MinChunkChars = 80
	// MaxChunkChars splits oversized blocks at whitespace boundaries.
	MaxChunkChars = 1200
)

// Chunk is one block-level text span of the cleaned document.
// DocumentIndex is assigned in document order and is the join key across
// scoring passes.
type Chunk struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	DocumentIndex int    `json:"document_index"`
	SourceTag     string `json:"source_tag,omitempty"`
}

// blockSelector lists the block-level elements chunking reads text from.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, td, blockquote, dt, dd, pre"

// HTML splits cleaned HTML into ordered text chunks. Consecutive short
// blocks are merged up to MinChunkChars; blocks beyond MaxChunkChars are
// split at whitespace. Document order is stable across calls.
func HTML(cleanedHTML string) ([]Chunk, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for chunking: %w", err)
	}

	type block struct {
		text string
		tag  string
	}
	var blocks []block

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose text is fully covered by nested block children.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		text := strings.TrimSpace(collapseWhitespace(s.Text()))
		if text == "" {
			return
		}
		blocks = append(blocks, block{text: text, tag: goquery.NodeName(s)})
	})

	// Fall back to raw body text when the document has no block structure.
	if len(blocks) == 0 {
		text := strings.TrimSpace(collapseWhitespace(doc.Find("body").Text()))
		if text != "" {
			blocks = append(blocks, block{text: text, tag: "body"})
		}
	}

	var chunks []Chunk
	var pending strings.Builder
	pendingTag := ""

	flush := func() {
		text := strings.TrimSpace(pending.String())
		pending.Reset()
		if text == "" {
			return
		}
		for _, part := range splitOversized(text) {
			idx := len(chunks)
			chunks = append(chunks, Chunk{
				ID:            fmt.Sprintf("chunk-%04d", idx),
				Text:          part,
				DocumentIndex: idx,
				SourceTag:     pendingTag,
			})
		}
		pendingTag = ""
	}

	for _, b := range blocks {
		// Headings start a fresh chunk so title text is never buried
		// mid-chunk.
		if isHeading(b.tag) && pending.Len() > 0 {
			flush()
		}
		if pending.Len() == 0 {
			pendingTag = b.tag
		}
		if pending.Len() > 0 {
			pending.WriteString("\n")
		}
		pending.WriteString(b.text)
		if pending.Len() >= MinChunkChars {
			flush()
		}
	}
	flush()

	return chunks, nil
}

func isHeading(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

// splitOversized splits text into spans of at most MaxChunkChars, breaking
// at the latest whitespace before the limit.
func splitOversized(text string) []string {
	if len(text) <= MaxChunkChars {
		return []string{text}
	}

	var parts []string
	for len(text) > MaxChunkChars {
		cut := strings.LastIndexAny(text[:MaxChunkChars], " \n\t")
		if cut <= 0 {
			cut = MaxChunkChars
		}
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
