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


package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// Archive implements storage.DocumentArchive on a badger Backend.
// Metadata and raw bytes are stored under separate keys so listing never
// loads document bodies; a library index key supports per-library scans.
type Archive struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.DocumentArchive = (*Archive)(nil)

// NewArchive creates an Archive over an open backend.
func NewArchive(backend *Backend, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		backend: backend,
		logger:  logger.With("component", "document-archive"),
	}
}

// Store persists a document's raw bytes and metadata. The archive id derives
// from library, version, filename, and content hash, so re-uploading the
// same document overwrites its previous archive entry.
func (a *Archive) Store(ctx context.Context, doc *core.Document) (core.ID, error) {
	if a.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	id := core.IDFromContent(doc.Library + ":" + doc.Version + ":" + doc.Filename + ":" + doc.Hash)
	meta := &core.ArchiveMeta{
		Id:         id,
		Library:    doc.Library,
		Version:    doc.Version,
		Filename:   doc.Filename,
		Title:      doc.Title,
		Hash:       doc.Hash,
		Size:       int64(len(doc.Raw)),
		UploadedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	err := a.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeMetaKey(id), storage.MarshalArchiveMeta(meta)); err != nil {
			return err
		}
		if err := tx.Set(makeBlobKey(id), doc.Raw); err != nil {
			return err
		}
		return tx.Set(makeLibKey(doc.Library, id), nil)
	}, true)
	if err != nil {
		return 0, err
	}

	a.logger.Debug("archived document", "id", id, "library", doc.Library, "filename", doc.Filename, "size", meta.Size)
	return id, nil
}

// Get retrieves an archived document's metadata and raw bytes by id.
func (a *Archive) Get(ctx context.Context, id core.ID) (*core.ArchiveMeta, []byte, error) {
	if a.backend.IsClosed() {
		return nil, nil, storage.ErrStorageClosed
	}

	var meta *core.ArchiveMeta
	var raw []byte
	err := a.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMetaKey(id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			meta, err = storage.UnmarshalArchiveMeta(val)
			return err
		}); err != nil {
			return err
		}

		item, err = tx.Get(makeBlobKey(id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	}, false)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return meta, raw, nil
}

// List returns metadata for archived documents, filtered to one library when
// library is non-empty, ordered by archive id.
func (a *Archive) List(ctx context.Context, library string) ([]core.ArchiveMeta, error) {
	if a.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var metas []core.ArchiveMeta
	err := a.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeLibScanPrefix(library)
		it := tx.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			id, err := idFromLibKey(key)
			if err != nil {
				a.logger.Warn("skipping malformed index key", "key", string(key))
				continue
			}

			item, err := tx.Get(makeMetaKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				meta, err := storage.UnmarshalArchiveMeta(val)
				if err != nil {
					return err
				}
				metas = append(metas, *meta)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// Delete removes an archived document and its index entry.
func (a *Archive) Delete(ctx context.Context, id core.ID) error {
	if a.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	err := a.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMetaKey(id))
		if err != nil {
			return err
		}
		var meta *core.ArchiveMeta
		if err := item.Value(func(val []byte) error {
			meta, err = storage.UnmarshalArchiveMeta(val)
			return err
		}); err != nil {
			return err
		}

		if err := tx.Delete(makeMetaKey(id)); err != nil {
			return err
		}
		if err := tx.Delete(makeBlobKey(id)); err != nil {
			return err
		}
		return tx.Delete(makeLibKey(meta.Library, id))
	}, true)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.backend.Close()
}

// idFromLibKey recovers the archive id from a library index key. The id is
// the trailing 8 bytes.
func idFromLibKey(key []byte) (core.ID, error) {
	if len(key) < 8 {
		return 0, storage.ErrSerializationFailed
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), nil
}
