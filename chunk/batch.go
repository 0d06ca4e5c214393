package chunk

import (
	"fmt"
	"iter"

	"github.com/poiesic/libris/core"
)

// DefaultBatchTokens is the token ceiling for one embedding call.
const DefaultBatchTokens = 2000

// promptOverhead is the per-chunk token allowance for the instruction prefix
// most embedding servers prepend to each input.
const promptOverhead = 5

// truncationMargin keeps truncated chunks safely under the ceiling after the
// prefix allowance is added back.
const truncationMargin = 10

// Counter abstracts token counting for batching.
type Counter interface {
	CountTokens(text string) int
	TruncateToTokens(text string, limit int) (string, bool)
}

// Batcher groups chunks into token-bounded embedding batches.
type Batcher struct {
	counter   Counter
	maxTokens int
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher) error

// WithBatchTokens sets the per-batch token ceiling.
func WithBatchTokens(n int) BatcherOption {
	return func(b *Batcher) error {
		if n <= promptOverhead+truncationMargin {
			return fmt.Errorf("batch token ceiling %d is too small", n)
		}
		b.maxTokens = n
		return nil
	}
}

// NewBatcher creates a Batcher over the given token counter.
func NewBatcher(counter Counter, opts ...BatcherOption) (*Batcher, error) {
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	b := &Batcher{counter: counter, maxTokens: DefaultBatchTokens}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Batches lazily yields token-bounded batches covering every chunk exactly
// once, in order. A chunk whose own token count exceeds the ceiling is
// truncated to fit and carried in its own batch; the truncation is reported
// on that batch's Warnings.
func (b *Batcher) Batches(chunks []*core.Chunk) iter.Seq[core.EmbeddingBatch] {
	return func(yield func(core.EmbeddingBatch) bool) {
		cur := core.EmbeddingBatch{}

		flush := func() bool {
			if len(cur.Chunks) == 0 {
				return true
			}
			out := cur
			cur = core.EmbeddingBatch{Index: out.Index + 1}
			return yield(out)
		}

		for _, c := range chunks {
			tokens := b.counter.CountTokens(c.Text) + promptOverhead

			if tokens > b.maxTokens {
				warning := b.truncateChunk(c, tokens-promptOverhead)
				tokens = c.TokenCount + promptOverhead
				if !flush() {
					return
				}
				cur.Chunks = append(cur.Chunks, c)
				cur.TokenSum = tokens
				cur.Warnings = append(cur.Warnings, warning)
				if !flush() {
					return
				}
				continue
			}

			c.TokenCount = tokens - promptOverhead
			if cur.TokenSum+tokens > b.maxTokens {
				if !flush() {
					return
				}
			}
			cur.Chunks = append(cur.Chunks, c)
			cur.TokenSum += tokens
		}
		flush()
	}
}

// truncateChunk cuts an over-ceiling chunk down to the token budget in place
// and returns the warning describing the cut. Warning sizes are in tokens,
// matching the ceiling that was exceeded.
func (b *Batcher) truncateChunk(c *core.Chunk, originalTokens int) core.TruncationWarning {
	text, _ := b.counter.TruncateToTokens(c.Text, b.maxTokens-truncationMargin)
	c.Text = text
	c.TokenCount = b.counter.CountTokens(text)
	c.Truncated = true
	return core.TruncationWarning{
		ChunkIndex:    c.Index,
		OriginalSize:  originalTokens,
		TruncatedSize: c.TokenCount,
		Kind:          core.TruncationToken,
		SectionTitle:  c.SectionTitle,
	}
}
