// Package sparse implements the local lexical encoder for hybrid retrieval.
//
// Terms are lowercased, hashed to stable 32-bit dimensions, and weighted by
// saturated term frequency. Document-frequency weighting is left to the
// vector store's IDF modifier, so encoding needs no corpus statistics and is
// fully deterministic.
package sparse

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/poiesic/libris/ai"
	"github.com/poiesic/libris/core"
)

// tfSaturation dampens repeated terms, BM25-style: weight = tf / (tf + k).
const tfSaturation = 1.2

// minTermLength drops single-character noise terms.
const minTermLength = 2

// Encoder implements ai.SparseEncoder. The zero value is not usable; create
// one with NewEncoder.
type Encoder struct{}

// NewEncoder creates a lexical encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

var _ ai.SparseEncoder = (*Encoder)(nil)

// Encode produces the sparse representation of text. Indices are unique and
// sorted ascending; an empty or termless text yields an empty vector.
func (e *Encoder) Encode(text string) core.SparseVector {
	counts := make(map[uint32]int)
	for _, term := range tokenize(text) {
		counts[hashTerm(term)]++
	}
	if len(counts) == 0 {
		return core.SparseVector{}
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		tf := float32(counts[idx])
		values[i] = tf / (tf + tfSaturation)
	}
	return core.SparseVector{Indices: indices, Values: values}
}

// EncodeBatch encodes texts in input order.
func (e *Encoder) EncodeBatch(texts []string) []core.SparseVector {
	out := make([]core.SparseVector, len(texts))
	for i, t := range texts {
		out[i] = e.Encode(t)
	}
	return out
}

// tokenize lowercases and splits on non-alphanumeric runes, keeping digits so
// version strings and identifiers remain searchable.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if len(f) >= minTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

func hashTerm(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}
