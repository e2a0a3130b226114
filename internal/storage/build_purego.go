//go:build purego || !sqlite_vec

package storage

// This file is compiled when building without CGO or with the purego tag.
// Vectors live in a plain table and nearest neighbours are found by an exact
// scan in Go.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

const vectorTableDDL = `
CREATE TABLE IF NOT EXISTS vec_learnings (
    id TEXT PRIMARY KEY,
    embedding BLOB NOT NULL
);
`

// encodeVector serializes a vector as little-endian float32, the same layout
// sqlite-vec uses
func encodeVector(v []float32) ([]byte, error) {
	return serializeVector(v), nil
}
