package badger

import (
	"context"
	"testing"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return NewArchive(backend, nil)
}

func testDocument(library, version, filename string) *core.Document {
	raw := []byte("# " + filename + "\n\nbody for " + library)
	return &core.Document{
		Library:  library,
		Version:  version,
		Filename: filename,
		Title:    filename,
		Raw:      raw,
		Text:     string(raw),
		Hash:     core.ContentHash(string(raw)),
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	doc := testDocument("fastapi", "0.110.0", "routing.md")
	id, err := a.Store(ctx, doc)
	require.NoError(t, err)
	require.NotZero(t, id)

	meta, raw, err := a.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, doc.Raw, raw)
	assert.Equal(t, "fastapi", meta.Library)
	assert.Equal(t, "0.110.0", meta.Version)
	assert.Equal(t, "routing.md", meta.Filename)
	assert.Equal(t, doc.Hash, meta.Hash)
	assert.EqualValues(t, len(doc.Raw), meta.Size)
	assert.False(t, meta.UploadedAt.IsZero())
}

func TestArchiveStoreIsIdempotentPerDocument(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	doc := testDocument("flask", "3.0", "app.md")
	first, err := a.Store(ctx, doc)
	require.NoError(t, err)
	second, err := a.Store(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	metas, err := a.List(ctx, "flask")
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestArchiveList(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	for _, name := range []string{"intro.md", "api.md"} {
		_, err := a.Store(ctx, testDocument("fastapi", "1.0", name))
		require.NoError(t, err)
	}
	_, err := a.Store(ctx, testDocument("flask", "3.0", "app.md"))
	require.NoError(t, err)

	t.Run("filtered by library", func(t *testing.T) {
		metas, err := a.List(ctx, "fastapi")
		require.NoError(t, err)
		assert.Len(t, metas, 2)
		for _, m := range metas {
			assert.Equal(t, "fastapi", m.Library)
		}
	})

	t.Run("all libraries", func(t *testing.T) {
		metas, err := a.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, metas, 3)
	})

	t.Run("unknown library is empty", func(t *testing.T) {
		metas, err := a.List(ctx, "django")
		require.NoError(t, err)
		assert.Empty(t, metas)
	})
}

func TestArchiveGetMissing(t *testing.T) {
	a := newTestArchive(t)
	_, _, err := a.Get(context.Background(), core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestArchiveDelete(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	id, err := a.Store(ctx, testDocument("fastapi", "1.0", "intro.md"))
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, id))

	_, _, err = a.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	metas, err := a.List(ctx, "fastapi")
	require.NoError(t, err)
	assert.Empty(t, metas)

	assert.ErrorIs(t, a.Delete(ctx, id), storage.ErrNotFound)
}
