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


// Package libris ingests documentation into a hybrid semantic and lexical
// index and serves queries over it. This file wires the subsystems into one
// handle: embedding backends, the Qdrant point and job store, the local
// document archive, the ingestion pipeline, the async job runner, and the
// searcher.
package libris

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/libris/ai"
	"github.com/poiesic/libris/ai/openai"
	"github.com/poiesic/libris/ai/sparse"
	"github.com/poiesic/libris/ai/vllm"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/ingestion"
	"github.com/poiesic/libris/jobs"
	"github.com/poiesic/libris/search"
	"github.com/poiesic/libris/storage"
	"github.com/poiesic/libris/storage/badger"
	"github.com/poiesic/libris/storage/qdrant"
)

// Libris is the top-level handle over the full system. One Libris shares a
// single Qdrant connection, one archive database, and one embedding worker
// pool across all operations.
type Libris struct {
	client   *ai.Client
	store    *qdrant.Store
	backend  *badger.Backend
	archive  storage.DocumentArchive
	pipeline *ingestion.Pipeline
	runner   *jobs.Runner
	searcher *search.Searcher
	logger   *slog.Logger
}

// Option configures a Libris.
type Option func(*options)

type options struct {
	aiConfig    *ai.Config
	storeConfig *qdrant.Config
	archivePath string
	jobTimeout  time.Duration
	logger      *slog.Logger
}

// WithAIConfig replaces the default embedding configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithStoreConfig replaces the default Qdrant connection settings.
func WithStoreConfig(cfg *qdrant.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.storeConfig = cfg
		}
	}
}

// WithArchivePath sets the directory of the local raw-document archive.
// Empty disables archiving.
func WithArchivePath(path string) Option {
	return func(o *options) {
		o.archivePath = path
	}
}

// WithJobTimeout sets the hard deadline for asynchronous ingestion jobs.
func WithJobTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open connects every subsystem and ensures the store collections exist.
// Callers own the returned handle's lifecycle via Close.
func Open(ctx context.Context, opts ...Option) (*Libris, error) {
	o := &options{
		aiConfig:    ai.DefaultConfig(),
		storeConfig: qdrant.DefaultConfig(),
		jobTimeout:  jobs.DefaultJobTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.aiConfig.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(o.aiConfig)
	if err != nil {
		return nil, err
	}
	client, err := ai.NewClient(embedder, sparse.NewEncoder(), o.aiConfig)
	if err != nil {
		return nil, err
	}

	store, err := qdrant.NewStore(o.storeConfig, o.logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollections(ctx); err != nil {
		store.Close()
		return nil, err
	}

	l := &Libris{
		client: client,
		store:  store,
		logger: o.logger,
	}

	pipelineOpts := []ingestion.Option{ingestion.WithLogger(o.logger)}
	if o.archivePath != "" {
		backend, backendErr := badger.OpenBackend(o.archivePath, false)
		if backendErr != nil {
			store.Close()
			return nil, backendErr
		}
		l.backend = backend
		l.archive = badger.NewArchive(backend, o.logger)
		pipelineOpts = append(pipelineOpts, ingestion.WithArchive(l.archive))
	}

	pipeline, err := ingestion.NewPipeline(client, store, pipelineOpts...)
	if err != nil {
		l.closePartial()
		return nil, err
	}
	l.pipeline = pipeline

	runner, err := jobs.NewRunner(store, pipeline,
		jobs.WithTimeout(o.jobTimeout), jobs.WithLogger(o.logger))
	if err != nil {
		pipeline.Release()
		l.closePartial()
		return nil, err
	}
	l.runner = runner

	searcher, err := search.NewSearcher(client, store, o.logger)
	if err != nil {
		runner.Close()
		pipeline.Release()
		l.closePartial()
		return nil, err
	}
	l.searcher = searcher

	return l, nil
}

func newEmbedder(cfg *ai.Config) (ai.Embedder, error) {
	if cfg.Mode == ai.ModeRemote {
		return vllm.NewEmbedder(cfg)
	}
	return openai.NewEmbedder(cfg)
}

func (l *Libris) closePartial() {
	if l.backend != nil {
		if err := l.backend.Close(); err != nil {
			l.logger.Error("error closing archive backend", "err", err)
		}
	}
	if err := l.store.Close(); err != nil {
		l.logger.Error("error closing point store", "err", err)
	}
}

// Ingest processes one upload synchronously.
func (l *Libris) Ingest(ctx context.Context, req ingestion.Request) (*core.IngestResult, error) {
	return l.pipeline.Ingest(ctx, req)
}

// IngestAsync enqueues an ingestion job and returns its id immediately.
func (l *Libris) IngestAsync(ctx context.Context, req ingestion.Request) (string, error) {
	return l.runner.Enqueue(ctx, req)
}

// JobStatus returns the current record of an asynchronous ingestion job.
func (l *Libris) JobStatus(ctx context.Context, id string) (*core.Job, error) {
	return l.runner.Status(ctx, id)
}

// PurgeJobs removes finished jobs older than the retention window.
func (l *Libris) PurgeJobs(ctx context.Context, retention time.Duration) (int, error) {
	return l.runner.Purge(ctx, retention)
}

// Search runs a hybrid query over the indexed chunks.
func (l *Libris) Search(ctx context.Context, query string, opts storage.QueryOptions) ([]storage.SearchResult, error) {
	return l.searcher.Search(ctx, query, opts)
}

// DeleteLibrary removes every indexed chunk of a library, optionally
// narrowed to one version. The raw-document archive is left untouched.
func (l *Libris) DeleteLibrary(ctx context.Context, library, version string) error {
	return l.store.DeleteLibrary(ctx, library, version)
}

// Archive exposes the raw-document archive, or nil when archiving is
// disabled.
func (l *Libris) Archive() storage.DocumentArchive {
	return l.archive
}

// Close drains in-flight jobs and releases every connection.
func (l *Libris) Close() error {
	if l.runner != nil {
		l.runner.Close()
	}
	if l.pipeline != nil {
		l.pipeline.Release()
	}
	if l.backend != nil {
		if err := l.backend.Close(); err != nil {
			l.logger.Error("error closing archive backend", "err", err)
			return err
		}
	}
	if err := l.store.Close(); err != nil {
		l.logger.Error("error closing point store", "err", err)
		return err
	}
	return nil
}
