package focus

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/jonathan/apply-assist/internal/llm"
)

// ErrNoFocus signals that no focused document could be produced; callers
// must fall back to the full cleaned or raw HTML.
var ErrNoFocus = fmt.Errorf("no focused document")

const (
	// keepThreshold is the final score at or above which a non-navigational
	// chunk is hard-kept.
	keepThreshold = 0.5
	// chunkBudget is the maximum number of chunks in the focused document.
	chunkBudget = 30
)

// Document is the reduced, ordered focused document.
type Document struct {
	Chunks []Chunk       `json:"chunks"`
	Ranked []RankedChunk `json:"ranked"`
	Text   string        `json:"text"`
}

// Options configures a focusing run.
type Options struct {
	Client   llm.Client
	Embedder llm.Embedder
	Verbose  bool
}

// Build runs the two-phase filter over cleaned HTML: embedding prefilter,
// then the sequential LLM ranking pass, then keep selection. The returned
// document preserves original document order. Embedding failures return
// ErrNoFocus; the caller falls back to unfocused content.
func Build(ctx context.Context, cleanedHTML string, opts Options) (*Document, error) {
	chunks, err := HTML(cleanedHTML)
	if err != nil {
		return nil, fmt.Errorf("%w: chunking failed: %v", ErrNoFocus, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", ErrNoFocus)
	}

	scores, err := Prefilter(ctx, chunks, opts.Embedder)
	if err != nil {
		return nil, err
	}

	// Candidates for the ranking pass, in document order.
	var candidates []Chunk
	for i, s := range scores {
		if s.Keep {
			candidates = append(candidates, chunks[i])
		}
	}

	if opts.Verbose {
		log.Printf("[FOCUS] %d chunks, %d ranking candidates", len(chunks), len(candidates))
	}

	ranked, err := Rank(ctx, candidates, opts.Client, opts.Verbose)
	if err != nil {
		return nil, err
	}

	kept := selectKept(ranked)
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no chunks survived selection", ErrNoFocus)
	}

	// Reassemble in original document order.
	sort.Slice(kept, func(a, b int) bool {
		return kept[a].Chunk.DocumentIndex < kept[b].Chunk.DocumentIndex
	})

	doc := &Document{Ranked: ranked}
	var sb strings.Builder
	for _, rc := range kept {
		doc.Chunks = append(doc.Chunks, rc.Chunk)
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(rc.Chunk.Text)
	}
	doc.Text = sb.String()

	if opts.Verbose {
		log.Printf("[FOCUS] Kept %d/%d chunks (%d chars)", len(kept), len(chunks), len(doc.Text))
	}

	return doc, nil
}

// selectKept applies the keep rules: hard-keep anything scoring at or above
// the threshold that is not navigational chrome, guarantee at least one
// title-like chunk, then fill the remaining budget by descending score.
func selectKept(ranked []RankedChunk) []RankedChunk {
	var kept []RankedChunk
	keptSet := make(map[string]bool)

	for _, rc := range ranked {
		if rc.FinalScore >= keepThreshold && rc.Label != LabelNavOrFooter {
			kept = append(kept, rc)
			keptSet[rc.Chunk.ID] = true
		}
	}

	// Guarantee a title-like chunk even when it scored under threshold.
	if !hasTitleLike(kept) {
		if best, ok := bestTitleCandidate(ranked, keptSet); ok {
			kept = append(kept, best)
			keptSet[best.Chunk.ID] = true
		}
	}

	// Fill remaining budget by descending score.
	if len(kept) < chunkBudget {
		rest := make([]RankedChunk, 0, len(ranked))
		for _, rc := range ranked {
			if !keptSet[rc.Chunk.ID] && rc.Label != LabelNavOrFooter && rc.Label != LabelUnrelated {
				rest = append(rest, rc)
			}
		}
		sort.SliceStable(rest, func(a, b int) bool {
			return rest[a].FinalScore > rest[b].FinalScore
		})
		for _, rc := range rest {
			if len(kept) >= chunkBudget {
				break
			}
			kept = append(kept, rc)
			keptSet[rc.Chunk.ID] = true
		}
	}

	// Enforce the budget, favoring higher scores but never dropping the
	// only title-like chunk.
	if len(kept) > chunkBudget {
		sort.SliceStable(kept, func(a, b int) bool {
			return kept[a].FinalScore > kept[b].FinalScore
		})
		trimmed := kept[:chunkBudget]
		if !hasTitleLike(trimmed) {
			for _, rc := range kept[chunkBudget:] {
				if isTitleLike(rc) {
					trimmed[len(trimmed)-1] = rc
					break
				}
			}
		}
		kept = trimmed
	}

	return kept
}

func isTitleLike(rc RankedChunk) bool {
	return rc.Label == LabelTitle || rc.Chunk.SourceTag == "h1"
}

func hasTitleLike(ranked []RankedChunk) bool {
	for _, rc := range ranked {
		if isTitleLike(rc) {
			return true
		}
	}
	return false
}

func bestTitleCandidate(ranked []RankedChunk, exclude map[string]bool) (RankedChunk, bool) {
	best := RankedChunk{}
	found := false
	for _, rc := range ranked {
		if exclude[rc.Chunk.ID] || !isTitleLike(rc) {
			continue
		}
		if !found || rc.FinalScore > best.FinalScore {
			best = rc
			found = true
		}
	}
	return best, found
}
