// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search runs hybrid queries over indexed chunks. A query is embedded
// once into a dense vector and a sparse lexical vector, and the store fuses
// both result lists server-side.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

const (
	FusionRRF  = "rrf"
	FusionDBSF = "dbsf"
)

var (
	ErrEmptyQuery          = errors.New("query must not be empty")
	ErrQueryClientRequired = errors.New("embedding client is required")
	ErrQueryStoreRequired  = errors.New("point store is required")
)

// EmbeddingClient is the embedding contract the searcher depends on.
// Implemented by ai.Client.
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, []core.SparseVector, error)
}

// Searcher embeds queries and runs them against the point store.
// Safe for concurrent use.
type Searcher struct {
	client EmbeddingClient
	store  storage.PointStore
	logger *slog.Logger
}

// NewSearcher creates a Searcher over the given embedding client and store.
func NewSearcher(client EmbeddingClient, store storage.PointStore, logger *slog.Logger) (*Searcher, error) {
	if client == nil {
		return nil, ErrQueryClientRequired
	}
	if store == nil {
		return nil, ErrQueryStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{client: client, store: store, logger: logger}, nil
}

// Search embeds the query and runs a hybrid dense+sparse lookup, optionally
// narrowed to one library and version. An unset fusion method defaults to
// reciprocal rank fusion.
func (s *Searcher) Search(ctx context.Context, query string, opts storage.QueryOptions) ([]storage.SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	switch opts.Fusion {
	case "", FusionRRF, FusionDBSF:
	default:
		return nil, fmt.Errorf("%w: unknown fusion method %q", storage.ErrInvalidQuery, opts.Fusion)
	}

	dense, sparse, err := s.client.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(dense) != 1 || len(sparse) != 1 {
		return nil, fmt.Errorf("expected one query vector pair, got %d dense and %d sparse", len(dense), len(sparse))
	}

	results, err := s.store.Query(ctx, dense[0], sparse[0], opts)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search finished",
		"library", opts.Library, "version", opts.Version,
		"fusion", opts.Fusion, "results", len(results))
	return results, nil
}
