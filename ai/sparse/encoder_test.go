package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	e := NewEncoder()

	t.Run("deterministic", func(t *testing.T) {
		a := e.Encode("configure the routing table")
		b := e.Encode("configure the routing table")
		assert.Equal(t, a, b)
	})

	t.Run("indices sorted and aligned with values", func(t *testing.T) {
		v := e.Encode("alpha beta gamma delta alpha")
		require.Equal(t, len(v.Indices), len(v.Values))
		for i := 1; i < len(v.Indices); i++ {
			assert.Less(t, v.Indices[i-1], v.Indices[i])
		}
	})

	t.Run("repeated terms weigh more but saturate", func(t *testing.T) {
		once := e.Encode("gradient")
		thrice := e.Encode("gradient gradient gradient")
		require.Len(t, once.Values, 1)
		require.Len(t, thrice.Values, 1)
		assert.Greater(t, thrice.Values[0], once.Values[0])
		assert.Less(t, thrice.Values[0], float32(1.0))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, e.Encode("Router"), e.Encode("router"))
	})

	t.Run("empty and symbol-only text", func(t *testing.T) {
		assert.Empty(t, e.Encode("").Indices)
		assert.Empty(t, e.Encode("!!! ... ---").Indices)
	})

	t.Run("version strings survive tokenization", func(t *testing.T) {
		v := e.Encode("released in 2024")
		assert.NotEmpty(t, v.Indices)
	})
}

func TestEncodeBatch(t *testing.T) {
	e := NewEncoder()
	texts := []string{"first document", "second document", ""}
	vectors := e.EncodeBatch(texts)

	require.Len(t, vectors, 3)
	assert.Equal(t, e.Encode(texts[0]), vectors[0])
	assert.Equal(t, e.Encode(texts[1]), vectors[1])
	assert.Empty(t, vectors[2].Indices)
}
