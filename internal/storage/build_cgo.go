//go:build sqlite_vec && !purego

package storage

// This file is compiled when building with CGO and the sqlite_vec tag. The
// sqlite-vec extension is registered with every connection and vec_learnings
// becomes a vec0 virtual table searched natively.
//
// Build command (FTS5 must be enabled in go-sqlite3):
//   CGO_ENABLED=1 go build -tags "sqlite_vec sqlite_fts5" ./...

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

const vectorTableDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_learnings USING vec0(
    id TEXT PRIMARY KEY,
    embedding float[384] distance_metric=cosine
);
`

// encodeVector serializes a vector into the sqlite-vec float32 blob format
func encodeVector(v []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(v)
}
