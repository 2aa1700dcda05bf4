package focus

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML_DocumentIndexSequence(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		sb.WriteString(fmt.Sprintf("<p>Paragraph number %d with enough text to stand on its own as a chunk of the page.</p>", i))
	}
	sb.WriteString("</body></html>")

	chunks, err := HTML(sb.String())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Indexes start at 0, increase by exactly 1, no gaps.
	for i, c := range chunks {
		assert.Equal(t, i, c.DocumentIndex)
	}
}

func TestHTML_StableOrder(t *testing.T) {
	page := `<html><body>
		<h1>Senior Engineer</h1>
		<p>First paragraph about the role, long enough to matter for chunking purposes here.</p>
		<p>Second paragraph about the team, also long enough to matter for chunking purposes.</p>
	</body></html>`

	first, err := HTML(page)
	require.NoError(t, err)
	second, err := HTML(page)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHTML_MergesShortBlocks(t *testing.T) {
	page := `<html><body><p>Short.</p><p>Also short.</p><p>Still short.</p>
		<p>This final paragraph pushes the merged chunk over the minimum size boundary now.</p></body></html>`

	chunks, err := HTML(page)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Short.")
	assert.Contains(t, chunks[0].Text, "minimum size boundary")
}

func TestHTML_SplitsOversizedBlocks(t *testing.T) {
	long := strings.Repeat("word ", 600) // ~3000 chars
	page := "<html><body><p>" + long + "</p></body></html>"

	chunks, err := HTML(page)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), MaxChunkChars)
	}
}

func TestHTML_HeadingStartsFreshChunk(t *testing.T) {
	page := `<html><body>
		<p>Intro text that is long enough to form its own chunk before the heading arrives here.</p>
		<h1>Senior Backend Engineer</h1>
		<p>Description of the role that follows the heading and is reasonably long as well.</p>
	</body></html>`

	chunks, err := HTML(page)
	require.NoError(t, err)

	var headingChunk *Chunk
	for i := range chunks {
		if chunks[i].SourceTag == "h1" {
			headingChunk = &chunks[i]
		}
	}
	require.NotNil(t, headingChunk, "expected a chunk whose source tag is h1")
	assert.True(t, strings.HasPrefix(headingChunk.Text, "Senior Backend Engineer"))
}

func TestHTML_EmptyBody(t *testing.T) {
	chunks, err := HTML("<html><body></body></html>")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestHTML_FallbackToBodyText(t *testing.T) {
	chunks, err := HTML("<html><body>Bare text with no block structure at all, just sitting in the body.</body></html>")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "body", chunks[0].SourceTag)
}
