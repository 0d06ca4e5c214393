package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/libris/core"
)

// Client is the embedding entry point used by the ingestion pipeline. It
// pairs a dense Embedder with a local SparseEncoder and wraps provider calls
// with transient-failure retry. Safe for concurrent use.
type Client struct {
	embedder Embedder
	sparse   SparseEncoder
	cfg      *Config
}

// NewClient creates a Client over the given backends. The config must have
// been validated.
func NewClient(embedder Embedder, sparse SparseEncoder, cfg *Config) (*Client, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if sparse == nil {
		return nil, fmt.Errorf("sparse encoder is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{embedder: embedder, sparse: sparse, cfg: cfg}, nil
}

// Concurrency is the in-flight batch ceiling for this backend.
func (c *Client) Concurrency() int {
	return c.cfg.Concurrency
}

// EmbedBatch embeds texts, returning one dense and one sparse vector per
// input in input order. Transient provider failures are retried with
// exponential backoff; permanent failures and exhausted retries are returned
// wrapped with the retry count.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, []core.SparseVector, error) {
	if len(texts) == 0 {
		return nil, nil, nil
	}

	var dense [][]float32
	retries, exhausted, err := RetryTransient(ctx, func() error {
		var embedErr error
		dense, embedErr = c.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, c.cfg.MaxRetries, c.cfg.RetryDelay)
	if err != nil {
		kind := core.KindPermanent
		switch {
		case exhausted:
			kind = core.KindTransientExhausted
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			kind = core.KindTimeout
		}
		se := core.NewStepError(core.StepEmbedding, "", kind, err)
		se.Retries = retries
		return nil, nil, se
	}

	if len(dense) != len(texts) {
		return nil, nil, core.NewStepError(core.StepEmbedding, "", core.KindPermanent,
			fmt.Errorf("provider returned %d vectors for %d texts", len(dense), len(texts)))
	}

	return dense, c.sparse.EncodeBatch(texts), nil
}
