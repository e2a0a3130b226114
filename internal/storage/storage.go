package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/learnings-mcp/internal/embedder"
	"github.com/dshills/learnings-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable is returned when the database cannot be opened,
	// configured or migrated
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Storage persists learnings across three indexes kept in lockstep: the
// learnings table, the vector index and the full-text index
type Storage interface {
	// Upsert embeds the learning's content and replaces any previous version
	// in all three indexes atomically
	Upsert(ctx context.Context, learning *types.Learning) error

	// Delete removes a learning from all indexes. Absent ids are ignored.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes several learnings in one transaction and returns
	// how many existed
	DeleteMany(ctx context.Context, ids []string) (int, error)

	// GetByIDs returns learnings in input order, skipping unknown ids
	GetByIDs(ctx context.Context, ids []string) ([]*types.Learning, error)

	// GetAll returns every learning, without content unless requested
	GetAll(ctx context.Context, includeContent bool) ([]*types.Learning, error)

	// GetVector returns the stored embedding of a learning
	GetVector(ctx context.Context, id string) ([]float32, error)

	// KNNSearch embeds queryText and returns up to k learnings visible to
	// scopeRepos whose distance is at most threshold, nearest first
	KNNSearch(ctx context.Context, queryText string, scopeRepos []string, k int, threshold float64) ([]types.Result, error)

	// KNNSearchVector is KNNSearch for a precomputed vector
	KNNSearchVector(ctx context.Context, vector []float32, scope ScopeFilter, k int, threshold float64) ([]types.Result, error)

	// FTSSearch returns the ids whose content matches any keyword of
	// queryText under the stemming tokenizer
	FTSSearch(ctx context.Context, queryText string) (map[string]struct{}, error)

	// Count returns the number of stored learnings
	Count(ctx context.Context) (int, error)

	// Stats summarizes the store
	Stats(ctx context.Context) (*Stats, error)

	// RecordIndexRun stores the outcome of an indexing run
	RecordIndexRun(ctx context.Context, run *IndexRun) error

	Close() error
}

// ScopeFilter selects which learnings a vector search may return. A learning
// is visible when it is global, when its repo is listed, or when AllScopes is
// set.
type ScopeFilter struct {
	Repos     []string
	AllScopes bool
}

// Matches reports whether a learning with the given metadata is visible
func (f ScopeFilter) Matches(m types.Metadata) bool {
	if f.AllScopes || m.Scope == types.ScopeGlobal {
		return true
	}
	if m.Scope != types.ScopeRepo {
		return false
	}
	for _, repo := range f.Repos {
		if repo == m.Repo {
			return true
		}
	}
	return false
}

// Stats contains counts about the stored learnings
type Stats struct {
	Total   int            `json:"total"`
	ByScope map[string]int `json:"by_scope"`
	ByTopic map[string]int `json:"by_topic"`
	ByRepo  map[string]int `json:"by_repo"`
	LastRun *IndexRun      `json:"last_run,omitempty"`
	Mode    string         `json:"build_mode"`
}

// IndexRun records one indexing pass
type IndexRun struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FilesIndexed int       `json:"files_indexed"`
	FilesFailed  int       `json:"files_failed"`
	FilesPruned  int       `json:"files_pruned"`
}

// Opener opens independent handles onto the same database file. Each handle
// owns its own connection, so handles may be used from different goroutines
// without sharing a connection.
type Opener struct {
	Path     string
	Embedder embedder.Embedder

	// SkipMigrations is set once the schema is known to be current, so
	// handles only open the file
	SkipMigrations bool
}

// Open returns a new handle
func (o Opener) Open(ctx context.Context) (*SQLiteStorage, error) {
	if o.SkipMigrations {
		return openUnmigrated(ctx, o.Path, o.Embedder)
	}
	return OpenSQLiteStorage(ctx, o.Path, o.Embedder)
}
