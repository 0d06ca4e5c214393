package badger

import (
	"encoding/binary"

	"github.com/poiesic/libris/core"
)

// Key prefixes for the archive keyspace
const (
	archiveMetaPrefix = "arcmeta"
	archiveBlobPrefix = "arcblob"
	archiveLibPrefix  = "arclib"
)

// makeMetaKey generates the metadata key for an archived document.
func makeMetaKey(id core.ID) []byte {
	return makeIDKey(archiveMetaPrefix, id)
}

// makeBlobKey generates the raw-bytes key for an archived document.
func makeBlobKey(id core.ID) []byte {
	return makeIDKey(archiveBlobPrefix, id)
}

func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+1+8)
	offset := copy(buf, prefix)
	buf[offset] = ':'
	binary.BigEndian.PutUint64(buf[offset+1:], uint64(id))
	return buf
}

// makeLibKey generates a composite key for the library index.
// Format: prefix:library:id
func makeLibKey(library string, id core.ID) []byte {
	prefix := archiveLibPrefix + ":" + library + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian so lexicographic iteration sorts by id
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeLibScanPrefix generates the iteration prefix for one library, or for
// the whole index when library is empty.
func makeLibScanPrefix(library string) []byte {
	if library == "" {
		return []byte(archiveLibPrefix + ":")
	}
	return []byte(archiveLibPrefix + ":" + library + ":")
}
