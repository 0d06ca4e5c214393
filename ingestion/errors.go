package ingestion

import "errors"

var (
	// ErrEmbeddingClientRequired is returned when an embedding client is not provided.
	ErrEmbeddingClientRequired = errors.New("embedding client required")

	// ErrPointStoreRequired is returned when a point store is not provided.
	ErrPointStoreRequired = errors.New("point store required")

	// ErrNoChunks is returned when chunking produced nothing to index.
	ErrNoChunks = errors.New("document produced no chunks")
)
