package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComputeHash verifies hashes are stable SHA-256 hex digests
func TestComputeHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeHash(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ComputeHash("hello world"))
	assert.Equal(t, ComputeHash("test"), ComputeHash("test"))
}

// TestValidateRequest verifies empty texts are rejected
func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))

	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
}

// TestCache verifies LRU eviction and copy-on-read
func TestCache(t *testing.T) {
	cache := NewCache(2)

	cache.Set("a", &Embedding{Vector: []float32{1, 2}, Dimension: 2})
	cache.Set("b", &Embedding{Vector: []float32{3, 4}, Dimension: 2})

	got, ok := cache.Get("a")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0], "mutating a returned vector must not touch the cache")

	cache.Set("c", &Embedding{Vector: []float32{5, 6}})
	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, 2, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

// TestNormalizeVector verifies unit length output
func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func TestNilCache(t *testing.T) {
	var cache *Cache
	cache.Set("a", &Embedding{Vector: []float32{1}})
	_, ok := cache.Get("a")
	assert.False(t, ok)
	assert.Zero(t, cache.Size())
	cache.Clear()
}

func TestCacheCopiesOnSet(t *testing.T) {
	cache := NewCache(1)
	emb := &Embedding{Vector: []float32{1, 2}}
	cache.Set("a", emb)
	emb.Vector[0] = 99

	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, float32(1), got.Vector[0])
}
