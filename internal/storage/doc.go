// Package storage persists learnings in SQLite.
//
// Every learning lives in three places that are always updated together:
//
//   - learnings: the document row (content, scope, repo, topic, keywords)
//   - vec_learnings: its 384-dimensional embedding
//   - fts_learnings: an FTS5 index using the porter stemmer, so that
//     "commanding" matches a learning that only says "command"
//
// Upsert and Delete touch all three inside one transaction; a learning is
// never visible in one index and missing from another.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.claude/compound-learning.db", emb)
//	if err != nil {
//	    return err // wraps storage.ErrStoreUnavailable
//	}
//	defer store.Close()
//
//	err = store.Upsert(ctx, &types.Learning{
//	    ID:       id,
//	    Content:  content,
//	    Metadata: types.Metadata{Scope: types.ScopeGlobal, Topic: "sqlite"},
//	})
//
//	results, err := store.KNNSearch(ctx, "wal mode readers", []string{"billing"}, 5, 1.0)
//
// # Distances
//
// Cosine distance in [0, 2] is halved, so every distance reported by this
// package is in [0, 1] with 0 meaning identical.
//
// # Concurrency
//
// A handle holds a single connection. Callers that need parallel reads open
// one handle per goroutine through an Opener; WAL mode lets those readers
// proceed while a writer commits.
//
// # Build Tags
//
// CGO build (sqlite_vec tag):
//
//   - github.com/mattn/go-sqlite3 with the sqlite-vec extension registered
//   - vec_learnings is a vec0 virtual table with native cosine KNN
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec sqlite_fts5"
//
// Pure Go build (default, or purego tag):
//
//   - modernc.org/sqlite
//   - vec_learnings is a plain table scanned with an exact Go cosine
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
