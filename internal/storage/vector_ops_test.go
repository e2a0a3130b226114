package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDistance(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1, 0.5},
		{2, 1},
		{-0.0001, 0},
		{2.5, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, normalizeDistance(tt.in), 1e-12, "input %v", tt.in)
	}
}

func TestSortCandidatesTieBreak(t *testing.T) {
	c := []candidate{{"b", 0.2}, {"c", 0.1}, {"a", 0.2}}
	sortCandidates(c)
	assert.Equal(t, []candidate{{"c", 0.1}, {"a", 0.2}, {"b", 0.2}}, c)
}

func TestBuildFTSQuery(t *testing.T) {
	assert.Equal(t, `"grafana" OR "rules" OR "sqlite"`, buildFTSQuery("What are the sqlite Grafana rules?"))
	assert.Equal(t, "", buildFTSQuery("the of and"))
	assert.Equal(t, `"near" OR "sql"`, buildFTSQuery(`NEAR(sql "`))
}

func TestSerializeVector(t *testing.T) {
	v := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := serializeVector(v)
	assert.Len(t, blob, 16)
	assert.Equal(t, v, deserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
