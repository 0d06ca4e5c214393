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


// Package qdrant implements the PointStore and JobStore interfaces against a
// Qdrant server over gRPC.
//
// The chunk collection carries a named dense vector space plus a named sparse
// space with server-side IDF weighting, so hybrid queries fuse both rankings
// without client-side scoring. Payload indexes on library, version, file
// path, type, and content hash keep dedup lookups and per-library deletion
// off the full-scan path.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// Collection and vector-space names.
const (
	ChunksCollection = "doc_chunks"
	JobsCollection   = "ingest_jobs"

	DenseVectorName  = "dense"
	SparseVectorName = "lexical"
)

// DefaultQueryLimit caps hybrid query results when the caller does not.
const DefaultQueryLimit = 10

// prefetchMultiplier widens per-space prefetch so fusion has enough
// candidates from both rankings.
const prefetchMultiplier = 4

// Config holds connection settings for a Qdrant server.
type Config struct {
	// Host is the server hostname. Default: "localhost"
	Host string

	// Port is the gRPC port. Default: 6334
	Port int

	// APIKey authenticates against Qdrant Cloud. Empty for local servers.
	APIKey string

	// UseTLS enables transport security, required by Qdrant Cloud.
	UseTLS bool

	// VectorSize is the dense embedding dimension. Must match the embedding
	// model. Default: 768
	VectorSize uint64
}

// DefaultConfig returns settings for a local Qdrant server.
func DefaultConfig() *Config {
	return &Config{
		Host:       "localhost",
		Port:       6334,
		VectorSize: 768,
	}
}

// Store implements storage.PointStore and storage.JobStore over one shared
// Qdrant connection.
type Store struct {
	client *qdrant.Client
	cfg    *Config
	logger *slog.Logger
}

// NewStore connects to Qdrant. The connection is shared and reused; callers
// own its lifecycle via Close.
func NewStore(cfg *Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 768
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Store{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "qdrant-store"),
	}, nil
}

// chunkIndexFields are the payload fields indexed for filtered queries.
var chunkIndexFields = []string{"library", "version", "file_path", "type", "content_hash"}

// jobIndexFields support status filtering and retention purges.
var jobIndexFields = []string{"status"}

// EnsureCollections creates the chunk and job collections with their payload
// indexes if they do not exist yet.
func (s *Store) EnsureCollections(ctx context.Context) error {
	if err := s.ensureChunks(ctx); err != nil {
		return err
	}
	return s.ensureJobs(ctx)
}

func (s *Store) ensureChunks(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, ChunksCollection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", ChunksCollection, err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: ChunksCollection,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				DenseVectorName: {
					Size:     s.cfg.VectorSize,
					Distance: qdrant.Distance_Cosine,
				},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				SparseVectorName: {
					Modifier: qdrant.Modifier_Idf.Enum(),
				},
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", ChunksCollection, err)
		}
		s.logger.Info("created collection", "collection", ChunksCollection, "vector_size", s.cfg.VectorSize)
	}

	for _, field := range chunkIndexFields {
		if err := s.ensureKeywordIndex(ctx, ChunksCollection, field); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureJobs(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, JobsCollection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", JobsCollection, err)
	}
	if !exists {
		// Jobs need no similarity search; the single-dimension vector only
		// satisfies the collection schema.
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: JobsCollection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     1,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", JobsCollection, err)
		}
		s.logger.Info("created collection", "collection", JobsCollection)
	}

	for _, field := range jobIndexFields {
		if err := s.ensureKeywordIndex(ctx, JobsCollection, field); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureKeywordIndex(ctx context.Context, collection, field string) error {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("indexing %s.%s: %w", collection, field, err)
	}
	return nil
}

// UpsertPoints writes points in bulk and waits for the write to land so a
// subsequent rollback observes them.
func (s *Store) UpsertPoints(ctx context.Context, points []*storage.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id: qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				DenseVectorName:  qdrant.NewVector(p.Dense...),
				SparseVectorName: qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values),
			}),
			Payload: payloadValues(p.Payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ChunksCollection,
		Points:         structs,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	s.logger.Debug("upserted points", "count", len(points))
	return nil
}

// DeletePoints removes points by id. Missing ids are ignored by the server,
// which is what rollback needs.
func (s *Store) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ChunksCollection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting %d points: %w", len(ids), err)
	}
	s.logger.Debug("deleted points", "count", len(ids))
	return nil
}

// FindByContentHash scrolls for one point carrying the hash and returns the
// document it belongs to.
func (s *Store) FindByContentHash(ctx context.Context, hash string) (*core.DuplicateRef, error) {
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: ChunksCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("content_hash", hash)},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}

	payload := points[0].GetPayload()
	return &core.DuplicateRef{
		Library:  payload["library"].GetStringValue(),
		Version:  payload["version"].GetStringValue(),
		FilePath: payload["file_path"].GetStringValue(),
		Title:    payload["title"].GetStringValue(),
	}, nil
}

// AppendLinkedFile adds filename to the linked_files list on every point
// with the given content hash.
func (s *Store) AppendLinkedFile(ctx context.Context, hash, filename string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("content_hash", hash)},
	}

	// Read the current list off one point; all points of a document carry
	// the same linked_files value.
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: ChunksCollection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return fmt.Errorf("reading linked files: %w", err)
	}
	if len(points) == 0 {
		return storage.ErrNotFound
	}

	linked := linkedFilesFrom(points[0].GetPayload())
	for _, existing := range linked {
		if existing == filename {
			return nil
		}
	}
	linked = append(linked, filename)

	_, err = s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: ChunksCollection,
		Payload:        qdrant.NewValueMap(map[string]any{"linked_files": toAnySlice(linked)}),
		PointsSelector: qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("appending linked file: %w", err)
	}
	s.logger.Debug("linked duplicate upload", "hash", hash, "filename", filename)
	return nil
}

// CountByFile counts points stored for one document.
func (s *Store) CountByFile(ctx context.Context, library, version, filePath string) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ChunksCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("library", library),
				qdrant.NewMatch("version", version),
				qdrant.NewMatch("file_path", filePath),
			},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(count), nil
}

// DeleteLibrary removes all points of a library, narrowed to one version
// when version is non-empty.
func (s *Store) DeleteLibrary(ctx context.Context, library, version string) error {
	if library == "" {
		return core.ErrLibraryRequired
	}

	conditions := []*qdrant.Condition{qdrant.NewMatch("library", library)}
	if version != "" {
		conditions = append(conditions, qdrant.NewMatch("version", version))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ChunksCollection,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{Must: conditions}),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting library %s: %w", library, err)
	}
	s.logger.Info("deleted library", "library", library, "version", version)
	return nil
}

// Query runs a hybrid query: dense and sparse prefetch legs fused
// server-side by RRF or DBSF.
func (s *Store) Query(ctx context.Context, dense []float32, sparse core.SparseVector, opts storage.QueryOptions) ([]storage.SearchResult, error) {
	if len(dense) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	fusion := qdrant.Fusion_RRF
	if opts.Fusion == "dbsf" {
		fusion = qdrant.Fusion_DBSF
	}

	var filter *qdrant.Filter
	var conditions []*qdrant.Condition
	if opts.Library != "" {
		conditions = append(conditions, qdrant.NewMatch("library", opts.Library))
	}
	if opts.Version != "" {
		conditions = append(conditions, qdrant.NewMatch("version", opts.Version))
	}
	if len(conditions) > 0 {
		filter = &qdrant.Filter{Must: conditions}
	}

	prefetchLimit := uint64(limit * prefetchMultiplier)
	prefetch := []*qdrant.PrefetchQuery{
		{
			Query:  qdrant.NewQueryDense(dense),
			Using:  qdrant.PtrOf(DenseVectorName),
			Filter: filter,
			Limit:  qdrant.PtrOf(prefetchLimit),
		},
	}
	if len(sparse.Indices) > 0 {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query:  qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
			Using:  qdrant.PtrOf(SparseVectorName),
			Filter: filter,
			Limit:  qdrant.PtrOf(prefetchLimit),
		})
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ChunksCollection,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(fusion),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid query: %w", err)
	}

	results := make([]storage.SearchResult, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		results = append(results, storage.SearchResult{
			Score:      p.GetScore(),
			Content:    payload["content"].GetStringValue(),
			Library:    payload["library"].GetStringValue(),
			Version:    payload["version"].GetStringValue(),
			Title:      payload["title"].GetStringValue(),
			FilePath:   payload["file_path"].GetStringValue(),
			ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		})
	}
	return results, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// payloadValues converts a Payload into the qdrant value map.
func payloadValues(p storage.Payload) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"content":      p.Content,
		"library":      p.Library,
		"version":      p.Version,
		"title":        p.Title,
		"file_path":    p.FilePath,
		"chunk_index":  int64(p.ChunkIndex),
		"total_chunks": int64(p.TotalChunks),
		"content_hash": p.ContentHash,
		"linked_files": toAnySlice(p.LinkedFiles),
		"type":         p.Type,
		"truncated":    p.Truncated,
	})
}

func linkedFilesFrom(payload map[string]*qdrant.Value) []string {
	var linked []string
	for _, v := range payload["linked_files"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			linked = append(linked, s)
		}
	}
	return linked
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
