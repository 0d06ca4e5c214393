package ai

import (
	"context"

	"github.com/poiesic/libris/core"
)

// Embedder generates dense vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts. Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// SparseEncoder produces lexical term-weight vectors for keyword-style
// matching. Encoding is local and deterministic; implementations must be
// thread-safe for concurrent use.
type SparseEncoder interface {
	// Encode produces the sparse representation of a single text.
	Encode(text string) core.SparseVector

	// EncodeBatch produces sparse representations for multiple texts, in
	// input order.
	EncodeBatch(texts []string) []core.SparseVector
}
