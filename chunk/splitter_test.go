package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/libris/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble rebuilds the source text from a chunk sequence by dropping each
// chunk's overlap prefix.
func reassemble(chunks []*core.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text[c.Overlap:])
	}
	return b.String()
}

func sampleMarkdown(paragraphs int) string {
	var b strings.Builder
	b.WriteString("# Installation\n\n")
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "Paragraph %d explains one aspect of the install flow in enough detail to fill a realistic line of documentation text.\n\n", i)
	}
	return b.String()
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := NewSplitter()
	require.NoError(t, err)

	for _, input := range []string{"", "   \n\n  \t"} {
		chunks, warnings := s.Split(input)
		assert.Empty(t, chunks)
		assert.Empty(t, warnings)
	}
}

func TestSplitDeterminism(t *testing.T) {
	s, err := NewSplitter()
	require.NoError(t, err)

	text := sampleMarkdown(40)
	first, firstWarn := s.Split(text)
	second, secondWarn := s.Split(text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
	assert.Equal(t, firstWarn, secondWarn)
}

func TestSplitReconstruction(t *testing.T) {
	s, err := NewSplitter()
	require.NoError(t, err)

	text := sampleMarkdown(60)
	chunks, warnings := s.Split(text)

	require.NotEmpty(t, chunks)
	assert.Empty(t, warnings)
	assert.Equal(t, text, reassemble(chunks))

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		if i > 0 {
			assert.Equal(t, chunks[i-1].End, c.Start)
		}
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s, err := NewSplitter(WithTargetSize(200), WithOverlap(40))
	require.NoError(t, err)

	chunks, _ := s.Split(sampleMarkdown(20))
	require.Greater(t, len(chunks), 1)

	assert.Zero(t, chunks[0].Overlap)
	for _, c := range chunks[1:] {
		assert.Equal(t, 40, c.Overlap)
		assert.True(t, strings.HasSuffix(chunks[c.Index-1].Text, c.Text[:c.Overlap]))
	}
}

func TestSplitSectionTitles(t *testing.T) {
	s, err := NewSplitter(WithTargetSize(120), WithOverlap(20))
	require.NoError(t, err)

	text := "# Setup\n\n" + strings.Repeat("The setup section body keeps going for a while. ", 4) + "\n\n" +
		"## Configuration\n\n" + strings.Repeat("The configuration section body also keeps going. ", 4) + "\n"
	chunks, _ := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, "Setup", chunks[0].SectionTitle)
	assert.Equal(t, "Configuration", chunks[len(chunks)-1].SectionTitle)
}

func TestSplitTruncationAccounting(t *testing.T) {
	const k = 25
	s, err := NewSplitter(WithTargetSize(50), WithOverlap(10), WithMaxChunkChars(100))
	require.NoError(t, err)

	// One unbreakable paragraph exceeding the ceiling by exactly k bytes.
	text := strings.Repeat("x", 100+k)
	chunks, warnings := s.Split(text)

	require.Len(t, chunks, 1)
	require.Len(t, warnings, 1)
	assert.True(t, chunks[0].Truncated)
	assert.Equal(t, 100, len(chunks[0].Text))
	assert.Equal(t, k, warnings[0].OriginalSize-warnings[0].TruncatedSize)
	assert.Equal(t, core.TruncationCharacter, warnings[0].Kind)
}

func TestSplitCeilingReservesOverlap(t *testing.T) {
	s, err := NewSplitter(WithTargetSize(100), WithOverlap(20), WithMaxChunkChars(200))
	require.NoError(t, err)

	// The middle paragraph fits the ceiling only without a full overlap
	// prefix; its tail bytes exist in no other chunk, so truncating here
	// would lose them. The prefix shrinks instead.
	text := strings.Repeat("a", 150) + "\n\n" + strings.Repeat("b", 190) + "\n\n" + strings.Repeat("c", 150) + "\n"
	chunks, warnings := s.Split(text)

	require.Len(t, chunks, 3)
	assert.Empty(t, warnings)
	assert.Equal(t, text, reassemble(chunks))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 200)
	}
	assert.Equal(t, 8, chunks[1].Overlap)
	assert.Equal(t, 20, chunks[2].Overlap)
}

func TestSplitMergeReservesOverlapBudget(t *testing.T) {
	s, err := NewSplitter(WithTargetSize(300), WithOverlap(20), WithMaxChunkChars(200))
	require.NoError(t, err)

	// Merged, these paragraphs stay under the ceiling only until the overlap
	// prefix is prepended; the splitter must keep them apart.
	text := strings.Repeat("a", 100) + "\n\n" + strings.Repeat("b", 95) + "\n"
	chunks, warnings := s.Split(text)

	require.Len(t, chunks, 2)
	assert.Empty(t, warnings)
	assert.Equal(t, text, reassemble(chunks))
	for _, c := range chunks {
		assert.False(t, c.Truncated)
		assert.LessOrEqual(t, len(c.Text), 200)
	}
}

func TestSplitLargeDocumentWithCodeBlock(t *testing.T) {
	s, err := NewSplitter()
	require.NoError(t, err)

	codeBlock := "```python\n" + strings.Repeat("value = compute(step)\n", 22) + "```\n"
	require.InDelta(t, 500, len(codeBlock), 40)

	var b strings.Builder
	b.WriteString(sampleMarkdown(40))
	b.WriteString(codeBlock)
	b.WriteString("\n")
	b.WriteString(sampleMarkdown(40))
	text := b.String()
	require.Greater(t, len(text), 10000)

	chunks, warnings := s.Split(text)

	assert.GreaterOrEqual(t, len(chunks), 2)
	assert.Empty(t, warnings)
	assert.Equal(t, text, reassemble(chunks))

	// The fenced block must survive intact inside a single chunk.
	var holders int
	for _, c := range chunks {
		if strings.Contains(c.Text, codeBlock) {
			holders++
		}
	}
	assert.GreaterOrEqual(t, holders, 1)
}

func TestSplitOversizedCodeBlockSplitsOnLines(t *testing.T) {
	s, err := NewSplitter(WithTargetSize(400), WithOverlap(40), WithMaxChunkChars(600))
	require.NoError(t, err)

	code := "```\n" + strings.Repeat("line of code that repeats\n", 60) + "```\n"
	require.Greater(t, len(code), 600)

	chunks, warnings := s.Split(code)

	assert.Empty(t, warnings)
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, code, reassemble(chunks))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 600)
		// Pieces break on line boundaries only.
		assert.True(t, c.End == len(code) || code[c.End-1] == '\n')
	}
}

func TestSplitUnclosedFence(t *testing.T) {
	s, err := NewSplitter()
	require.NoError(t, err)

	text := "intro paragraph\n\n```\nnever closed\n"
	chunks, _ := s.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, text, reassemble(chunks))
}

func TestNewSplitterRejectsBadOptions(t *testing.T) {
	_, err := NewSplitter(WithTargetSize(0))
	assert.Error(t, err)

	_, err = NewSplitter(WithOverlap(-1))
	assert.Error(t, err)

	_, err = NewSplitter(WithTargetSize(100), WithOverlap(100))
	assert.Error(t, err)
}
