package ingestion

import (
	"context"
	"errors"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// DedupResult is the tagged outcome of a dedup check: either the document is
// fresh, or a reference to the already-indexed original. Duplicates are an
// expected outcome, not an error.
type DedupResult struct {
	Duplicate bool
	Ref       *core.DuplicateRef
}

// checkDuplicate looks the content hash up in the store.
func checkDuplicate(ctx context.Context, store storage.PointStore, hash string) (DedupResult, error) {
	ref, err := store.FindByContentHash(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return DedupResult{}, nil
	}
	if err != nil {
		return DedupResult{}, err
	}
	return DedupResult{Duplicate: true, Ref: ref}, nil
}
