package chunk

import (
	"strings"
	"testing"

	"github.com/poiesic/libris/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter is a deterministic stand-in for the tokenizer: one word, one
// token.
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func (wordCounter) TruncateToTokens(text string, limit int) (string, bool) {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text, false
	}
	return strings.Join(words[:limit], " "), true
}

func wordsChunk(index, words int) *core.Chunk {
	return &core.Chunk{Index: index, Text: strings.TrimSpace(strings.Repeat("word ", words))}
}

func collect(b *Batcher, chunks []*core.Chunk) []core.EmbeddingBatch {
	var out []core.EmbeddingBatch
	for batch := range b.Batches(chunks) {
		out = append(out, batch)
	}
	return out
}

func TestBatchesCoverage(t *testing.T) {
	b, err := NewBatcher(wordCounter{}, WithBatchTokens(100))
	require.NoError(t, err)

	chunks := []*core.Chunk{
		wordsChunk(0, 40), wordsChunk(1, 40), wordsChunk(2, 40),
		wordsChunk(3, 10), wordsChunk(4, 60),
	}
	batches := collect(b, chunks)

	// Every chunk appears exactly once, in order, and every batch respects
	// the ceiling.
	var seen []*core.Chunk
	for i, batch := range batches {
		assert.Equal(t, i, batch.Index)
		assert.LessOrEqual(t, batch.TokenSum, 100)
		seen = append(seen, batch.Chunks...)
	}
	require.Equal(t, len(chunks), len(seen))
	for i := range chunks {
		assert.Same(t, chunks[i], seen[i])
	}
}

func TestBatchesGreedyPacking(t *testing.T) {
	b, err := NewBatcher(wordCounter{}, WithBatchTokens(100))
	require.NoError(t, err)

	// 40+5 and 40+5 fit together; the third 40+5 starts a new batch.
	batches := collect(b, []*core.Chunk{wordsChunk(0, 40), wordsChunk(1, 40), wordsChunk(2, 40)})

	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Chunks, 2)
	assert.Equal(t, 90, batches[0].TokenSum)
	assert.Len(t, batches[1].Chunks, 1)
}

func TestBatchesOversizedChunk(t *testing.T) {
	b, err := NewBatcher(wordCounter{}, WithBatchTokens(100))
	require.NoError(t, err)

	chunks := []*core.Chunk{wordsChunk(0, 20), wordsChunk(1, 500), wordsChunk(2, 20)}
	batches := collect(b, chunks)

	require.Len(t, batches, 3)

	// The oversized chunk rides alone, truncated to fit under the ceiling.
	solo := batches[1]
	require.Len(t, solo.Chunks, 1)
	assert.True(t, solo.Chunks[0].Truncated)
	assert.Equal(t, 90, solo.Chunks[0].TokenCount)
	assert.LessOrEqual(t, solo.TokenSum, 100)

	// Warning sizes are token counts, not byte lengths.
	require.Len(t, solo.Warnings, 1)
	assert.Equal(t, 1, solo.Warnings[0].ChunkIndex)
	assert.Equal(t, core.TruncationToken, solo.Warnings[0].Kind)
	assert.Equal(t, 500, solo.Warnings[0].OriginalSize)
	assert.Equal(t, 90, solo.Warnings[0].TruncatedSize)

	assert.Empty(t, batches[0].Warnings)
	assert.Empty(t, batches[2].Warnings)
}

func TestBatchesPopulateTokenCounts(t *testing.T) {
	b, err := NewBatcher(wordCounter{})
	require.NoError(t, err)

	chunks := []*core.Chunk{wordsChunk(0, 30)}
	batches := collect(b, chunks)

	require.Len(t, batches, 1)
	assert.Equal(t, 30, chunks[0].TokenCount)
}

func TestBatchesEmptyInput(t *testing.T) {
	b, err := NewBatcher(wordCounter{})
	require.NoError(t, err)

	assert.Empty(t, collect(b, nil))
}

func TestNewBatcherValidation(t *testing.T) {
	_, err := NewBatcher(nil)
	assert.Error(t, err)

	_, err = NewBatcher(wordCounter{}, WithBatchTokens(10))
	assert.Error(t, err)
}
