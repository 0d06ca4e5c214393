package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for archived documents.
// It is generated from document content using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ContentHash computes the hex-encoded SHA-256 digest of extracted document
// text. It is the dedup key: byte-identical text always yields the same hash.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Document is the logical ingestion unit, identified by (library, version,
// filename). It is immutable once chunked; a re-upload supersedes it.
type Document struct {
	Library  string
	Version  string
	Filename string
	Title    string
	Raw      []byte // original uploaded bytes
	Text     string // extracted text
	Hash     string // ContentHash of Text
}

// Chunk is an ordered text segment of a Document.
// Start and End are byte offsets into the extracted text; Text is the source
// text from Start-Overlap to End, so concatenating Text[Overlap:] of all
// chunks in order reproduces the extracted text (absent truncation).
type Chunk struct {
	Index        int
	Text         string
	Start        int
	End          int
	Overlap      int // length of the carried-over prefix, in bytes
	SectionTitle string
	TokenCount   int // populated during batching
	Truncated    bool
}

// TruncationKind distinguishes character-ceiling from token-ceiling truncation.
type TruncationKind string

const (
	TruncationCharacter TruncationKind = "character"
	TruncationToken     TruncationKind = "token"
)

// TruncationWarning records a chunk that exceeded a size ceiling before
// storage. Non-fatal; attached to the ingestion result. Sizes are measured in
// the ceiling's unit: characters for Kind character, tokens for Kind token.
type TruncationWarning struct {
	ChunkIndex    int            `json:"chunk_index"`
	OriginalSize  int            `json:"original_size"`
	TruncatedSize int            `json:"truncated_size"`
	Kind          TruncationKind `json:"truncation_type"`
	SectionTitle  string         `json:"section_title,omitempty"`
}

// EmbeddingBatch is a token-bounded group of chunks submitted to the
// embedding provider in one call. The sum of per-chunk token counts never
// exceeds the batch ceiling except for a singleton chunk that was truncated
// to fit on its own.
type EmbeddingBatch struct {
	Index    int
	Chunks   []*Chunk
	TokenSum int
	Warnings []TruncationWarning
}

// SparseVector is a lexical (term-weighted) representation used for
// keyword-style matching in the hybrid index.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// FileResult reports the outcome for one file within an ingestion request.
// Archive uploads produce one entry per extracted file.
type FileResult struct {
	Filename      string `json:"filename"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Error         string `json:"error,omitempty"`
}

// IngestResult summarizes a completed ingestion call.
type IngestResult struct {
	Library            string              `json:"library"`
	Version            string              `json:"version"`
	FilesProcessed     int                 `json:"files_processed"`
	ChunksIndexed      int                 `json:"chunks_indexed"`
	DurationSeconds    float64             `json:"duration_seconds"`
	WasDuplicate       bool                `json:"was_duplicate"`
	LinkedTo           string              `json:"linked_to,omitempty"`
	TruncationWarnings []TruncationWarning `json:"truncation_warnings,omitempty"`
	Files              []FileResult        `json:"files,omitempty"`
}

// JobStatus is the lifecycle state of an asynchronous ingestion job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the durable record of an asynchronous ingestion request. It lives in
// the external store so it outlives the worker process; the runner updates it
// at every major transition and callers poll it by id.
type Job struct {
	ID        string        `json:"job_id"`
	Status    JobStatus     `json:"status"`
	Progress  string        `json:"progress,omitempty"`
	Result    *IngestResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DuplicateRef points at the already-indexed document that matched a content
// hash during dedup.
type DuplicateRef struct {
	Library  string
	Version  string
	FilePath string
	Title    string
}

// ArchiveMeta is the metadata record stored alongside raw document bytes in
// the document archive.
type ArchiveMeta struct {
	Id         ID
	Library    string
	Version    string
	Filename   string
	Title      string
	Hash       string
	Size       int64
	UploadedAt time.Time
}
