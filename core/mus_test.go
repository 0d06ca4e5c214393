package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveMetaMUS(t *testing.T) {
	meta := ArchiveMeta{
		Id:         IDFromContent("round trip"),
		Library:    "fastapi",
		Version:    "0.110.0",
		Filename:   "routing.md",
		Title:      "Routing",
		Hash:       ContentHash("round trip"),
		Size:       2048,
		UploadedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	bs := make([]byte, ArchiveMetaMUS.Size(meta))
	n := ArchiveMetaMUS.Marshal(meta, bs)
	require.Equal(t, len(bs), n)

	got, n, err := ArchiveMetaMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
	assert.Equal(t, meta, got)

	skipped, err := ArchiveMetaMUS.Skip(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), skipped)
}

func TestArchiveMetaMUSTruncatedInput(t *testing.T) {
	meta := ArchiveMeta{Id: 7, Library: "flask", Filename: "app.md", UploadedAt: time.Now().UTC()}
	bs := make([]byte, ArchiveMetaMUS.Size(meta))
	ArchiveMetaMUS.Marshal(meta, bs)

	_, _, err := ArchiveMetaMUS.Unmarshal(bs[:3])
	assert.Error(t, err)
}
