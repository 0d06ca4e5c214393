package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records persisted in the document archive.
// Hand-written in the generated-serializer style; field order is part of the
// stored format and must not change.

// IDMUS serializes ID values.
var IDMUS = idMUS{}

type idMUS struct{}

var _ mus.Serializer[ID] = idMUS{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

// ArchiveMetaMUS serializes ArchiveMeta records.
var ArchiveMetaMUS = archiveMetaMUS{}

type archiveMetaMUS struct{}

var _ mus.Serializer[ArchiveMeta] = archiveMetaMUS{}

func (archiveMetaMUS) Marshal(v ArchiveMeta, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Library, bs[n:])
	n += ord.String.Marshal(v.Version, bs[n:])
	n += ord.String.Marshal(v.Filename, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Hash, bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += varint.Int64.Marshal(v.UploadedAt.UnixMicro(), bs[n:])
	return n
}

func (archiveMetaMUS) Unmarshal(bs []byte) (v ArchiveMeta, n int, err error) {
	var c int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Library, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	if v.Version, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	if v.Filename, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	if v.Title, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	if v.Hash, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	if v.Size, c, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	var micros int64
	if micros, c, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + c, err
	}
	n += c
	v.UploadedAt = time.UnixMicro(micros).UTC()
	return v, n, nil
}

func (archiveMetaMUS) Size(v ArchiveMeta) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Library)
	size += ord.String.Size(v.Version)
	size += ord.String.Size(v.Filename)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Hash)
	size += varint.Int64.Size(v.Size)
	size += varint.Int64.Size(v.UploadedAt.UnixMicro())
	return size
}

func (archiveMetaMUS) Skip(bs []byte) (n int, err error) {
	var c int
	if n, err = IDMUS.Skip(bs); err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		if c, err = ord.String.Skip(bs[n:]); err != nil {
			return n + c, err
		}
		n += c
	}
	for i := 0; i < 2; i++ {
		if c, err = varint.Int64.Skip(bs[n:]); err != nil {
			return n + c, err
		}
		n += c
	}
	return n, nil
}
