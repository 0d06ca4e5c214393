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
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/libris/chunk"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/extract"
	"github.com/poiesic/libris/storage"
	"github.com/poiesic/libris/token"
)

// EmbeddingClient is the embedding contract the pipeline depends on.
// Implemented by ai.Client.
type EmbeddingClient interface {
	// EmbedBatch returns one dense and one sparse vector per text, in input
	// order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, []core.SparseVector, error)

	// Concurrency is the backend's in-flight batch ceiling.
	Concurrency() int
}

// Request is one ingestion call: raw uploaded bytes plus their coordinates.
// Progress, when set, overrides the pipeline-level progress callback for this
// request only; the job runner uses it to persist per-job progress.
type Request struct {
	Content  []byte
	Filename string
	Library  string
	Version  string
	Progress func(string)
}

// Pipeline orchestrates ingestion: extraction, dedup, chunking, batching,
// concurrent embedding, and transactional indexing. One Pipeline is shared
// across requests; it owns an embedding worker pool sized to the backend's
// concurrency ceiling.
type Pipeline struct {
	client   EmbeddingClient
	store    storage.PointStore
	archive  storage.DocumentArchive
	splitter *chunk.Splitter
	batcher  *chunk.Batcher
	pool     *ants.Pool
	progress func(string)
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithArchive stores raw uploads in a document archive alongside indexing.
func WithArchive(archive storage.DocumentArchive) Option {
	return func(p *Pipeline) error {
		p.archive = archive
		return nil
	}
}

// WithSplitter replaces the default chunker.
func WithSplitter(s *chunk.Splitter) Option {
	return func(p *Pipeline) error {
		if s == nil {
			return fmt.Errorf("splitter must not be nil")
		}
		p.splitter = s
		return nil
	}
}

// WithBatcher replaces the default token batcher.
func WithBatcher(b *chunk.Batcher) Option {
	return func(p *Pipeline) error {
		if b == nil {
			return fmt.Errorf("batcher must not be nil")
		}
		p.batcher = b
		return nil
	}
}

// WithPoolSize overrides the embedding worker pool size.
// Default is the client's concurrency ceiling.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithProgress registers a callback invoked at each pipeline stage
// transition with a short human-readable status.
func WithProgress(fn func(string)) Option {
	return func(p *Pipeline) error {
		p.progress = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline over the given embedding client
// and point store.
func NewPipeline(client EmbeddingClient, store storage.PointStore, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, ErrEmbeddingClientRequired
	}
	if store == nil {
		return nil, ErrPointStoreRequired
	}

	splitter, err := chunk.NewSplitter()
	if err != nil {
		return nil, err
	}
	counter := token.NewCounter("", nil)
	batcher, err := chunk.NewBatcher(counter)
	if err != nil {
		return nil, err
	}

	poolSize := client.Concurrency()
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		client:   client,
		store:    store,
		splitter: splitter,
		batcher:  batcher,
		pool:     pool,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release releases the embedding worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// reportFunc delivers one progress line to whichever callback is active for
// the current request.
type reportFunc func(format string, args ...any)

func (p *Pipeline) reporter(override func(string)) reportFunc {
	fn := p.progress
	if override != nil {
		fn = override
	}
	return func(format string, args ...any) {
		if fn != nil {
			fn(fmt.Sprintf(format, args...))
		}
	}
}

// Ingest validates and processes one upload. Zip archives fan out into their
// extractable entries with per-file failure isolation; all other uploads are
// processed as a single document. A nil error with WasDuplicate set means
// the content was already indexed and only a linked-file reference was
// added.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*core.IngestResult, error) {
	started := time.Now()

	if req.Library == "" {
		return nil, core.NewStepError(core.StepValidation, req.Filename, core.KindValidation, core.ErrLibraryRequired)
	}

	// The client-supplied name becomes a point id and archive key component;
	// archive entry paths are not rewritten, they are traversal-checked by
	// the zip validation instead.
	req.Filename = core.SanitizeFilename(req.Filename)

	if err := core.ValidateUpload(req.Content, req.Filename); err != nil {
		return nil, err
	}

	result := &core.IngestResult{Library: req.Library, Version: req.Version}
	report := p.reporter(req.Progress)

	if extract.IsArchive(req.Filename) {
		if err := p.ingestArchive(ctx, req, result, report); err != nil {
			return nil, err
		}
	} else {
		outcome, err := p.ingestFile(ctx, req.Content, req.Filename, req.Library, req.Version, report)
		if err != nil {
			return nil, err
		}
		outcome.apply(result)
	}

	result.DurationSeconds = time.Since(started).Seconds()
	p.logger.Info("ingestion finished",
		"library", req.Library, "version", req.Version, "filename", req.Filename,
		"files", result.FilesProcessed, "chunks", result.ChunksIndexed,
		"duplicate", result.WasDuplicate, "duration_s", result.DurationSeconds)
	return result, nil
}

// ingestArchive processes each extractable entry independently. One entry's
// failure is recorded per-file and does not roll back sibling entries.
func (p *Pipeline) ingestArchive(ctx context.Context, req Request, result *core.IngestResult, report reportFunc) error {
	report("expanding archive %s", req.Filename)
	entries, err := extract.Expand(req.Content, req.Filename)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return core.NewStepError(core.StepExtraction, req.Filename, core.KindExtraction,
			fmt.Errorf("archive contains no extractable files"))
	}

	for i, entry := range entries {
		report("processing file %d/%d: %s", i+1, len(entries), entry.Name)

		outcome, err := p.ingestFile(ctx, entry.Content, entry.Name, req.Library, req.Version, report)
		if err != nil {
			p.logger.Warn("archive entry failed", "entry", entry.Name, "err", err)
			result.Files = append(result.Files, core.FileResult{Filename: entry.Name, Error: err.Error()})
			continue
		}
		outcome.apply(result)
		result.Files = append(result.Files, core.FileResult{Filename: entry.Name, ChunksIndexed: outcome.chunksIndexed})
	}
	return nil
}

// fileOutcome accumulates one file's contribution to the aggregate result.
type fileOutcome struct {
	chunksIndexed int
	warnings      []core.TruncationWarning
	duplicate     bool
	linkedTo      string
}

func (o *fileOutcome) apply(result *core.IngestResult) {
	result.FilesProcessed++
	result.ChunksIndexed += o.chunksIndexed
	result.TruncationWarnings = append(result.TruncationWarnings, o.warnings...)
	if o.duplicate {
		result.WasDuplicate = true
		result.LinkedTo = o.linkedTo
	}
}

// ingestFile runs the full state machine for one document: extracting,
// hashing (with duplicate short-circuit), chunking, batching, embedding,
// indexing. Failure past the dedup stage rolls back every staged point.
func (p *Pipeline) ingestFile(ctx context.Context, content []byte, filename, library, version string, report reportFunc) (*fileOutcome, error) {
	report("extracting %s", filename)
	text, err := extract.Text(content, filename)
	if err != nil {
		return nil, err
	}

	doc := &core.Document{
		Library:  library,
		Version:  version,
		Filename: filename,
		Title:    extract.Title(text, filename),
		Raw:      content,
		Text:     text,
		Hash:     core.ContentHash(text),
	}

	report("checking for duplicates of %s", filename)
	dedup, err := checkDuplicate(ctx, p.store, doc.Hash)
	if err != nil {
		return nil, core.NewStepError(core.StepIndexing, filename, core.KindIndexing, err)
	}
	if dedup.Duplicate {
		if err := p.store.AppendLinkedFile(ctx, doc.Hash, filename); err != nil {
			return nil, core.NewStepError(core.StepIndexing, filename, core.KindIndexing, err)
		}
		p.logger.Info("duplicate content, linked instead of re-indexing",
			"filename", filename, "original", dedup.Ref.FilePath)
		return &fileOutcome{duplicate: true, linkedTo: dedup.Ref.FilePath}, nil
	}

	report("chunking %s", filename)
	chunks, warnings := p.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, core.NewStepError(core.StepChunking, filename, core.KindExtraction, ErrNoChunks)
	}

	if p.archive != nil {
		if _, err := p.archive.Store(ctx, doc); err != nil {
			p.logger.Warn("could not archive raw document", "filename", filename, "err", err)
		}
	}

	var batches []core.EmbeddingBatch
	for b := range p.batcher.Batches(chunks) {
		warnings = append(warnings, b.Warnings...)
		batches = append(batches, b)
	}

	ix := newIndexer(p.store, doc, extract.DocType(filename), p.logger)
	ix.stage(chunks)

	report("embedding %d chunks in %d batches for %s", len(chunks), len(batches), filename)
	dense, sparse, err := p.embedBatches(ctx, batches, len(chunks))
	if err != nil {
		ix.rollback(ctx)
		return nil, stampFile(err, filename)
	}

	report("indexing %d chunks for %s", len(chunks), filename)
	points, err := ix.buildPoints(chunks, dense, sparse)
	if err != nil {
		ix.rollback(ctx)
		return nil, core.NewStepError(core.StepIndexing, filename, core.KindIndexing, err)
	}
	if err := ix.write(ctx, points); err != nil {
		ix.rollback(ctx)
		return nil, err
	}

	return &fileOutcome{chunksIndexed: len(chunks), warnings: warnings}, nil
}

// embedBatches dispatches batches to the worker pool, bounded by the pool
// size, and reassembles vectors by chunk order rather than completion order.
func (p *Pipeline) embedBatches(ctx context.Context, batches []core.EmbeddingBatch, totalChunks int) ([][]float32, []core.SparseVector, error) {
	dense := make([][]float32, totalChunks)
	sparse := make([]core.SparseVector, totalChunks)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	// offsets[i] is the chunk position where batch i starts.
	offsets := make([]int, len(batches))
	next := 0
	for i, b := range batches {
		offsets[i] = next
		next += len(b.Chunks)
	}

	for i := range batches {
		batch := batches[i]
		offset := offsets[i]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			texts := make([]string, len(batch.Chunks))
			for j, c := range batch.Chunks {
				texts[j] = c.Text
			}

			d, s, err := p.client.EmbedBatch(ctx, texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("batch %d: %w", batch.Index, err)
				}
				mu.Unlock()
				cancel()
				return
			}

			mu.Lock()
			copy(dense[offset:], d)
			copy(sparse[offset:], s)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			cancel()
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return dense, sparse, nil
}

// stampFile fills the file name into a step error that was produced below
// the per-file level.
func stampFile(err error, filename string) error {
	if se := core.StepErrorFrom(err); se != nil && se.File == "" {
		se.File = filename
	}
	return err
}
