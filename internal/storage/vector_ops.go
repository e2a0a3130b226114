package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/learnings-mcp/internal/keywords"
)

// maxKNN is the largest k sqlite-vec accepts in a single KNN query
const maxKNN = 4096

// candidate is a raw nearest neighbour before hydration and scope filtering
type candidate struct {
	id       string
	distance float64 // normalized to [0, 1]
}

// nearestNeighbors returns up to limit ids closest to vector, nearest first
func nearestNeighbors(ctx context.Context, db *sql.DB, vector []float32, limit int) ([]candidate, error) {
	if limit > maxKNN {
		limit = maxKNN
	}
	if VectorExtensionAvailable {
		return nearestNeighborsVec0(ctx, db, vector, limit)
	}
	return nearestNeighborsFallback(ctx, db, vector, limit)
}

// nearestNeighborsVec0 runs a native KNN query against the vec0 table
func nearestNeighborsVec0(ctx context.Context, db *sql.DB, vector []float32, limit int) ([]candidate, error) {
	blob, err := encodeVector(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query vector: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, distance
		FROM vec_learnings
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, blob, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, limit)
	for rows.Next() {
		var c candidate
		var cosineDistance float64
		if err := rows.Scan(&c.id, &cosineDistance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		c.distance = normalizeDistance(cosineDistance)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return candidates, nil
}

// nearestNeighborsFallback scans every stored vector and ranks in Go
func nearestNeighborsFallback(ctx context.Context, db *sql.DB, vector []float32, limit int) ([]candidate, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, embedding FROM vec_learnings")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 256)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		stored := deserializeVector(blob)
		if len(stored) != len(vector) {
			continue
		}
		candidates = append(candidates, candidate{
			id:       id,
			distance: normalizeDistance(1 - cosineSimilarity(vector, stored)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// normalizeDistance maps a cosine distance in [0, 2] onto [0, 1]
func normalizeDistance(cosineDistance float64) float64 {
	d := cosineDistance / 2
	switch {
	case d < 0:
		return 0
	case d > 1:
		return 1
	}
	return d
}

// sortCandidates orders by distance, then id for a stable order on ties
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})
}

// buildFTSQuery turns free text into an FTS5 expression that matches any of
// its keywords. Keywords are quoted so FTS5 operators in the input are inert.
func buildFTSQuery(text string) string {
	terms := keywords.Sorted(keywords.Extract(text))
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(terms, " OR ")
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
