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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// pointNamespace seeds deterministic point ids. Fixed forever; changing it
// would orphan every previously indexed point.
var pointNamespace = uuid.MustParse("8f6f70a4-1d25-4d6a-9cfb-1b6a80d9a1f4")

// PointID derives the deterministic id for one chunk of one document. The
// same document content at the same coordinates always maps to the same
// point, so re-ingestion overwrites instead of duplicating.
func PointID(library, version, filePath string, chunkIndex int, contentHash string) string {
	name := fmt.Sprintf("%s:%s:%s:%d:%s", library, version, filePath, chunkIndex, shortHash(contentHash))
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// indexer stages and writes the points of one document, and deletes them all
// if anything downstream fails. Every id is staged before the first write so
// rollback covers partially landed upserts.
type indexer struct {
	store   storage.PointStore
	logger  *slog.Logger
	doc     *core.Document
	docType string
	staged  []string
}

func newIndexer(store storage.PointStore, doc *core.Document, docType string, logger *slog.Logger) *indexer {
	return &indexer{store: store, logger: logger, doc: doc, docType: docType}
}

// stage records the ids of every point this ingestion intends to write.
func (ix *indexer) stage(chunks []*core.Chunk) {
	ix.staged = make([]string, len(chunks))
	for i, c := range chunks {
		ix.staged[i] = PointID(ix.doc.Library, ix.doc.Version, ix.doc.Filename, c.Index, ix.doc.Hash)
	}
}

// buildPoints pairs chunks with their vectors into store points. Vectors are
// indexed by chunk order, which batching and reassembly preserve.
func (ix *indexer) buildPoints(chunks []*core.Chunk, dense [][]float32, sparse []core.SparseVector) ([]*storage.Point, error) {
	if len(dense) != len(chunks) || len(sparse) != len(chunks) {
		return nil, fmt.Errorf("vector count mismatch: %d chunks, %d dense, %d sparse", len(chunks), len(dense), len(sparse))
	}

	points := make([]*storage.Point, len(chunks))
	for i, c := range chunks {
		points[i] = &storage.Point{
			ID:     ix.staged[i],
			Dense:  dense[i],
			Sparse: sparse[i],
			Payload: storage.Payload{
				Content:     c.Text,
				Library:     ix.doc.Library,
				Version:     ix.doc.Version,
				Title:       ix.doc.Title,
				FilePath:    ix.doc.Filename,
				ChunkIndex:  c.Index,
				TotalChunks: len(chunks),
				ContentHash: ix.doc.Hash,
				Type:        ix.docType,
				Truncated:   c.Truncated,
			},
		}
	}
	return points, nil
}

// write performs the bulk upsert.
func (ix *indexer) write(ctx context.Context, points []*storage.Point) error {
	if err := ix.store.UpsertPoints(ctx, points); err != nil {
		return core.NewStepError(core.StepIndexing, ix.doc.Filename, core.KindIndexing, err)
	}
	return nil
}

// rollback deletes every staged point. It runs detached from the caller's
// context so a timeout or cancellation that caused the failure cannot also
// block the cleanup.
func (ix *indexer) rollback(ctx context.Context) {
	if len(ix.staged) == 0 {
		return
	}
	cleanupCtx := context.WithoutCancel(ctx)
	if err := ix.store.DeletePoints(cleanupCtx, ix.staged); err != nil {
		ix.logger.Error("rollback failed, orphaned points may remain",
			"file", ix.doc.Filename, "points", len(ix.staged), "err", err)
		return
	}
	ix.logger.Info("rolled back points after failure", "file", ix.doc.Filename, "points", len(ix.staged))
}
