package storage

import (
	"context"
	"time"

	"github.com/poiesic/libris/core"
)

// Point is the unit persisted to the vector store: one chunk's text, its
// dense and sparse vectors, and the payload metadata used for filtering,
// dedup, and deletion.
type Point struct {
	ID      string
	Dense   []float32
	Sparse  core.SparseVector
	Payload Payload
}

// Payload is the metadata stored alongside each point.
type Payload struct {
	Content     string
	Library     string
	Version     string
	Title       string
	FilePath    string
	ChunkIndex  int
	TotalChunks int
	ContentHash string
	LinkedFiles []string
	Type        string
	Truncated   bool
}

// QueryOptions narrows and shapes a hybrid query.
type QueryOptions struct {
	// Library restricts results to one library when non-empty.
	Library string

	// Version restricts results to one version when non-empty.
	Version string

	// Limit caps the result count. Zero selects the store default.
	Limit int

	// Fusion selects the rank-fusion method: "rrf" (default) or "dbsf".
	Fusion string
}

// SearchResult is one hybrid query hit.
type SearchResult struct {
	Score      float32
	Content    string
	Library    string
	Version    string
	Title      string
	FilePath   string
	ChunkIndex int
}

// PointStore provides the vector-store operations the ingestion pipeline and
// search path depend on. Implementations must be thread-safe and reuse one
// underlying connection.
type PointStore interface {
	// EnsureCollections creates the chunk and job collections and their
	// payload indexes if missing. Idempotent.
	EnsureCollections(ctx context.Context) error

	// UpsertPoints writes points in bulk, waiting for the write to land.
	UpsertPoints(ctx context.Context, points []*Point) error

	// DeletePoints removes points by id. Missing ids are not an error, so a
	// rollback can run even when only part of a staged write succeeded.
	DeletePoints(ctx context.Context, ids []string) error

	// FindByContentHash returns a reference to an already-indexed document
	// with the given content hash, or ErrNotFound.
	FindByContentHash(ctx context.Context, hash string) (*core.DuplicateRef, error)

	// AppendLinkedFile records filename as a linked file on every point
	// carrying the given content hash.
	AppendLinkedFile(ctx context.Context, hash, filename string) error

	// CountByFile returns the number of points stored for one document.
	CountByFile(ctx context.Context, library, version, filePath string) (int, error)

	// DeleteLibrary removes every point belonging to a library, optionally
	// narrowed to one version.
	DeleteLibrary(ctx context.Context, library, version string) error

	// Query runs a hybrid dense+sparse query with server-side rank fusion.
	Query(ctx context.Context, dense []float32, sparse core.SparseVector, opts QueryOptions) ([]SearchResult, error)

	// Close releases the underlying connection.
	Close() error
}

// JobStore persists background-job records durably, outside process memory,
// so a restarted worker keeps visibility into in-flight and finished jobs.
type JobStore interface {
	// CreateJob writes a new job record. The job id must be unique.
	CreateJob(ctx context.Context, job *core.Job) error

	// UpdateJob overwrites an existing job record.
	UpdateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by id. Returns ErrNotFound if absent.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// PurgeJobs deletes terminal jobs whose last update is older than the
	// retention window. Returns the number of jobs removed.
	PurgeJobs(ctx context.Context, retention time.Duration) (int, error)
}

// DocumentArchive stores the raw uploaded bytes and their metadata so a
// document can be re-extracted or re-embedded later without a re-upload.
type DocumentArchive interface {
	// Store persists a document's raw bytes and metadata, returning the
	// content-derived archive id.
	Store(ctx context.Context, doc *core.Document) (core.ID, error)

	// Get retrieves an archived document by id. Returns ErrNotFound if
	// absent.
	Get(ctx context.Context, id core.ID) (*core.ArchiveMeta, []byte, error)

	// List returns metadata for archived documents, optionally filtered by
	// library.
	List(ctx context.Context, library string) ([]core.ArchiveMeta, error)

	// Delete removes an archived document. Deleting a missing id returns
	// ErrNotFound.
	Delete(ctx context.Context, id core.ID) error

	// Close flushes and closes the underlying database.
	Close() error
}
