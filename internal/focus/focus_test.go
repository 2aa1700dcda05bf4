package focus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-assist/internal/llm"
)

// fakeEmbedder scores texts containing job terms closer to the query.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, _ *llm.EmbedOptions) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		// Axis 0: job-ness, axis 1: everything else.
		if i == 0 || strings.Contains(lower, "engineer") || strings.Contains(lower, "responsibilit") ||
			strings.Contains(lower, "requirement") || strings.Contains(lower, "salary") {
			vectors[i] = []float32{1, 0.1}
		} else {
			vectors[i] = []float32{0.1, 1}
		}
	}
	return vectors, nil
}

// scriptedRanker labels chunks by their content.
type scriptedRanker struct{}

func (s *scriptedRanker) Generate(_ context.Context, prompt string, _ llm.ModelTier, _ *llm.Options) (string, error) {
	resp := rankResponse{Importance: 0.4, Label: string(LabelGeneral)}
	lower := strings.ToLower(currentChunkSection(prompt))
	switch {
	case strings.Contains(lower, "senior backend software engineer"):
		resp = rankResponse{Importance: 0.9, Label: string(LabelTitle), Memory: Memory{Title: true}}
	case strings.Contains(lower, "responsibilities"):
		resp = rankResponse{Importance: 0.7, Label: string(LabelResponsibilities), Memory: Memory{Responsibilities: true}}
	case strings.Contains(lower, "requirements"):
		resp = rankResponse{Importance: 0.7, Label: string(LabelRequirements), Memory: Memory{Requirements: true}}
	case strings.Contains(lower, "cookie policy"):
		resp = rankResponse{Importance: 0.1, Label: string(LabelNavOrFooter)}
	}
	out, _ := json.Marshal(resp)
	return string(out), nil
}

func (s *scriptedRanker) GetModel(llm.ModelTier) string { return "fake" }
func (s *scriptedRanker) Close() error                  { return nil }

// currentChunkSection isolates the chunk text within a ranking prompt so
// the scripted ranker is not confused by the memory JSON or the label enum.
func currentChunkSection(prompt string) string {
	section := prompt
	if idx := strings.Index(section, "Current chunk:"); idx >= 0 {
		section = section[idx+len("Current chunk:"):]
	}
	if idx := strings.Index(section, "Judge how important"); idx >= 0 {
		section = section[:idx]
	}
	return section
}

const focusFixture = `<html><body>
	<h1>Senior Backend Software Engineer</h1>
	<p>Responsibilities include designing and operating distributed backend services at scale.</p>
	<p>Requirements: five years of Go experience and familiarity with PostgreSQL and Redis systems.</p>
	<p>Cookie policy, privacy policy, terms of service, and other legal boilerplate links live here.</p>
	<p>Our office dog is named Biscuit and enjoys long naps in the sunshine every afternoon there.</p>
</body></html>`

func TestBuild_KeepsJobContentDropsChrome(t *testing.T) {
	doc, err := Build(context.Background(), focusFixture, Options{
		Client:   &scriptedRanker{},
		Embedder: &fakeEmbedder{},
	})
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "Senior Backend Software Engineer")
	assert.Contains(t, doc.Text, "Responsibilities")
	assert.Contains(t, doc.Text, "Requirements")
	assert.NotContains(t, doc.Text, "Cookie policy")
}

func TestBuild_PreservesDocumentOrder(t *testing.T) {
	doc, err := Build(context.Background(), focusFixture, Options{
		Client:   &scriptedRanker{},
		Embedder: &fakeEmbedder{},
	})
	require.NoError(t, err)

	last := -1
	for _, c := range doc.Chunks {
		assert.Greater(t, c.DocumentIndex, last)
		last = c.DocumentIndex
	}

	titlePos := strings.Index(doc.Text, "Senior Backend Software Engineer")
	reqPos := strings.Index(doc.Text, "Requirements")
	require.GreaterOrEqual(t, titlePos, 0)
	require.GreaterOrEqual(t, reqPos, 0)
	assert.Less(t, titlePos, reqPos)
}

func TestBuild_EmbeddingFailureIsErrNoFocus(t *testing.T) {
	_, err := Build(context.Background(), focusFixture, Options{
		Client:   &scriptedRanker{},
		Embedder: &fakeEmbedder{err: fmt.Errorf("model not found")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFocus)
}

func TestBuild_EmptyDocumentIsErrNoFocus(t *testing.T) {
	_, err := Build(context.Background(), "<html><body></body></html>", Options{
		Client:   &scriptedRanker{},
		Embedder: &fakeEmbedder{},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFocus)
}

func TestPrefilter_KeywordBoostCapped(t *testing.T) {
	text := "responsibilities requirements qualifications salary compensation benefits apply remote"
	assert.InDelta(t, keywordBoostCap, keywordBoost(text), 0.001)
}

func TestPrefilter_MarksTopCandidates(t *testing.T) {
	var chunks []Chunk
	for i := 0; i < 60; i++ {
		text := "filler content with nothing interesting in it at all"
		if i%2 == 0 {
			text = "engineer responsibilities and requirements for this salary"
		}
		chunks = append(chunks, Chunk{ID: fmt.Sprintf("chunk-%04d", i), Text: text, DocumentIndex: i})
	}

	scores, err := Prefilter(context.Background(), chunks, &fakeEmbedder{})
	require.NoError(t, err)
	require.Len(t, scores, 60)

	keptCount := 0
	for i, s := range scores {
		// Scores come back in document order.
		assert.Equal(t, chunks[i].ID, s.ChunkID)
		if s.Keep {
			keptCount++
		}
	}
	assert.Equal(t, candidateLimit, keptCount)

	// Every job-flavored chunk outranks every filler chunk.
	for i, s := range scores {
		if i%2 == 0 {
			assert.True(t, s.Keep, "job-flavored chunk %d should be a candidate", i)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 0.001)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 0.001)
	assert.Zero(t, cosineSimilarity(nil, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestRank_MemoryMergesForward(t *testing.T) {
	var sawMemoryWithTitle bool
	client := &promptCapturingRanker{onPrompt: func(prompt string) {
		if strings.Contains(prompt, `"title":true`) {
			sawMemoryWithTitle = true
		}
	}}

	candidates := []Chunk{
		{ID: "chunk-0000", Text: "Senior Backend Software Engineer", DocumentIndex: 0, SourceTag: "h1"},
		{ID: "chunk-0001", Text: "Responsibilities include building services.", DocumentIndex: 1},
	}

	_, err := Rank(context.Background(), candidates, client, false)
	require.NoError(t, err)
	assert.True(t, sawMemoryWithTitle, "second call must see the memory flag set by the first")
}

// promptCapturingRanker reports title on the first call and inspects prompts.
type promptCapturingRanker struct {
	onPrompt func(string)
	calls    int
}

func (p *promptCapturingRanker) Generate(_ context.Context, prompt string, _ llm.ModelTier, _ *llm.Options) (string, error) {
	p.calls++
	if p.onPrompt != nil {
		p.onPrompt(prompt)
	}
	if p.calls == 1 {
		return `{"importance": 0.9, "label": "title", "continuation": false, "memory": {"title": true}}`, nil
	}
	return `{"importance": 0.5, "label": "general", "continuation": false, "memory": {}}`, nil
}

func (p *promptCapturingRanker) GetModel(llm.ModelTier) string { return "fake" }
func (p *promptCapturingRanker) Close() error                  { return nil }

func TestRank_FailedCallDegradesToNeutral(t *testing.T) {
	client := &erroringRanker{}
	ranked, err := Rank(context.Background(), []Chunk{{ID: "chunk-0000", Text: "text", DocumentIndex: 0}}, client, false)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, LabelGeneral, ranked[0].Label)
	assert.InDelta(t, 0.5, ranked[0].Importance, 0.001)
}

type erroringRanker struct{}

func (e *erroringRanker) Generate(context.Context, string, llm.ModelTier, *llm.Options) (string, error) {
	return "", fmt.Errorf("timeout")
}
func (e *erroringRanker) GetModel(llm.ModelTier) string { return "fake" }
func (e *erroringRanker) Close() error                  { return nil }
