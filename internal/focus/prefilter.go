package focus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jonathan/apply-assist/internal/llm"
)

// jobContentQuery is the fixed query every chunk is scored against.
const jobContentQuery = "job posting content: job title, hiring company, location, salary, role description, responsibilities, requirements, qualifications, benefits, how to apply"

const (
	// keywordBoostPerTerm is added per matched job-related term.
	keywordBoostPerTerm = 0.1
	// keywordBoostCap bounds the total keyword boost for one chunk.
	keywordBoostCap = 0.4
	// candidateLimit is how many top-scored chunks go to the LLM ranking pass.
	candidateLimit = 40
)

// boostTerms are job-related terms that raise a chunk's prefilter score
// independently of embedding similarity.
var boostTerms = []string{
	"responsibilities",
	"requirements",
	"qualifications",
	"salary",
	"compensation",
	"benefits",
	"experience",
	"remote",
	"hybrid",
	"full-time",
	"part-time",
	"apply",
	"about the role",
	"about the job",
	"we are looking for",
	"you will",
}

// ChunkScore is the prefilter score for one chunk. Ephemeral; recomputed
// each run and persisted only as a run artifact.
type ChunkScore struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Keep    bool    `json:"keep"`
}

// Prefilter embeds all chunks plus the job-content query and scores each
// chunk as cosine similarity plus a capped keyword boost. The top
// candidateLimit chunks are marked Keep. Scores are returned in document
// order. Any embedding failure is returned wrapped in ErrNoFocus.
func Prefilter(ctx context.Context, chunks []Chunk, embedder llm.Embedder) ([]ChunkScore, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, jobContentQuery)
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, err := embedder.Embed(ctx, texts, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding failed: %v", ErrNoFocus, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: want %d, got %d", ErrNoFocus, len(texts), len(vectors))
	}

	queryVec := vectors[0]
	scores := make([]ChunkScore, len(chunks))
	for i, c := range chunks {
		scores[i] = ChunkScore{
			ChunkID: c.ID,
			Score:   cosineSimilarity(queryVec, vectors[i+1]) + keywordBoost(c.Text),
		}
	}

	// Mark the top candidates without disturbing document order.
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]].Score > scores[order[b]].Score
	})
	limit := candidateLimit
	if limit > len(order) {
		limit = len(order)
	}
	for _, idx := range order[:limit] {
		scores[idx].Keep = true
	}

	return scores, nil
}

// keywordBoost adds keywordBoostPerTerm per matched job term, capped at
// keywordBoostCap.
func keywordBoost(text string) float64 {
	lower := strings.ToLower(text)
	boost := 0.0
	for _, term := range boostTerms {
		if strings.Contains(lower, term) {
			boost += keywordBoostPerTerm
			if boost >= keywordBoostCap {
				return keywordBoostCap
			}
		}
	}
	return boost
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is degenerate.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
