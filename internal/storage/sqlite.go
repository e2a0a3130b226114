package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/learnings-mcp/internal/embedder"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// timeLayout is the on-disk timestamp format (ISO-8601, UTC)
const timeLayout = time.RFC3339

// maxParams bounds the number of placeholders in one IN (...) clause
const maxParams = 500

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db       *sql.DB
	embedder embedder.Embedder
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(ctx context.Context, dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// One connection per handle; concurrency comes from independent handles
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// busy_timeout comes first so the journal mode switch waits on locks
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// NewSQLiteStorage opens (and migrates) the database at dbPath
func NewSQLiteStorage(dbPath string, emb embedder.Embedder) (*SQLiteStorage, error) {
	return OpenSQLiteStorage(context.Background(), dbPath, emb)
}

// OpenSQLiteStorage is NewSQLiteStorage with a caller context. Every failure
// wraps ErrStoreUnavailable.
func OpenSQLiteStorage(ctx context.Context, dbPath string, emb embedder.Embedder) (*SQLiteStorage, error) {
	s, err := openUnmigrated(ctx, dbPath, emb)
	if err != nil {
		return nil, err
	}

	if err := ApplyMigrations(ctx, s.db); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %w", ErrStoreUnavailable, err)
	}

	return s, nil
}

// openUnmigrated opens a handle without touching the schema
func openUnmigrated(ctx context.Context, dbPath string, emb embedder.Embedder) (*SQLiteStorage, error) {
	db, err := openDatabase(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database %s: %w", ErrStoreUnavailable, dbPath, err)
	}
	return &SQLiteStorage{db: db, embedder: emb}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction, committing only if fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Upsert embeds the learning and replaces it in all three indexes
func (s *SQLiteStorage) Upsert(ctx context.Context, learning *types.Learning) error {
	if err := learning.Validate(); err != nil {
		return err
	}
	if s.embedder == nil {
		return fmt.Errorf("%w: no embedder configured", embedder.ErrNoProviderEnabled)
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: learning.Content})
	if err != nil {
		return fmt.Errorf("failed to embed learning %s: %w", learning.ID, err)
	}
	blob, err := encodeVector(emb.Vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	now := time.Now().UTC()
	return s.withTx(ctx, func(q querier) error {
		createdAt := learning.Metadata.CreatedAt
		if createdAt.IsZero() {
			existing, err := s.createdAtWithQuerier(ctx, q, learning.ID)
			if err != nil {
				return err
			}
			createdAt = existing
		}
		if createdAt.IsZero() {
			createdAt = now
		}

		if err := s.deleteWithQuerier(ctx, q, learning.ID); err != nil {
			return err
		}

		m := learning.Metadata
		repo := m.Repo
		if m.Scope == types.ScopeGlobal {
			repo = ""
		}
		topic := m.Topic
		if topic == "" {
			topic = types.DefaultTopic
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO learnings (id, content, scope, repo, file_path, topic, keywords, summary, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			learning.ID, learning.Content, string(m.Scope), repo, m.FilePath, topic,
			types.JoinKeywords(m.Keywords), m.Summary,
			createdAt.UTC().Format(timeLayout), now.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert learning: %w", err)
		}

		if _, err := q.ExecContext(ctx, "INSERT INTO vec_learnings (id, embedding) VALUES (?, ?)", learning.ID, blob); err != nil {
			return fmt.Errorf("failed to insert vector: %w", err)
		}
		if _, err := q.ExecContext(ctx, "INSERT INTO fts_learnings (id, content) VALUES (?, ?)", learning.ID, learning.Content); err != nil {
			return fmt.Errorf("failed to insert full-text row: %w", err)
		}

		learning.Metadata.Repo = repo
		learning.Metadata.Topic = topic
		learning.Metadata.CreatedAt = createdAt.UTC()
		learning.Metadata.UpdatedAt = now
		return nil
	})
}

func (s *SQLiteStorage) createdAtWithQuerier(ctx context.Context, q querier, id string) (time.Time, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT created_at FROM learnings WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read created_at: %w", err)
	}
	return parseTime(raw), nil
}

// deleteWithQuerier removes id from all three indexes
func (s *SQLiteStorage) deleteWithQuerier(ctx context.Context, q querier, id string) error {
	for _, stmt := range []string{
		"DELETE FROM learnings WHERE id = ?",
		"DELETE FROM vec_learnings WHERE id = ?",
		"DELETE FROM fts_learnings WHERE id = ?",
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	return nil
}

// Delete removes a learning from all indexes
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q querier) error {
		return s.deleteWithQuerier(ctx, q, id)
	})
}

// DeleteMany removes several learnings in one transaction
func (s *SQLiteStorage) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted := 0
	err := s.withTx(ctx, func(q querier) error {
		for _, id := range ids {
			var exists int
			err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM learnings WHERE id = ?", id).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check %s: %w", id, err)
			}
			if err := s.deleteWithQuerier(ctx, q, id); err != nil {
				return err
			}
			deleted += exists
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

const learningColumns = "id, content, scope, repo, file_path, topic, keywords, summary, created_at, updated_at"
const metadataColumns = "id, '', scope, repo, file_path, topic, keywords, summary, created_at, updated_at"

func scanLearning(rows *sql.Rows) (*types.Learning, error) {
	var (
		l                    types.Learning
		scope, keywords      string
		createdAt, updatedAt string
	)
	err := rows.Scan(&l.ID, &l.Content, &scope, &l.Metadata.Repo, &l.Metadata.FilePath,
		&l.Metadata.Topic, &keywords, &l.Metadata.Summary, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan learning: %w", err)
	}
	l.Metadata.Scope = types.Scope(scope)
	l.Metadata.Keywords = types.SplitKeywords(keywords)
	l.Metadata.CreatedAt = parseTime(createdAt)
	l.Metadata.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// GetByIDs returns learnings in the order of ids, skipping unknown ids
func (s *SQLiteStorage) GetByIDs(ctx context.Context, ids []string) ([]*types.Learning, error) {
	return s.getByIDsWithQuerier(ctx, s.db, ids)
}

func (s *SQLiteStorage) getByIDsWithQuerier(ctx context.Context, q querier, ids []string) ([]*types.Learning, error) {
	found := make(map[string]*types.Learning, len(ids))

	for start := 0; start < len(ids); start += maxParams {
		end := start + maxParams
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := q.QueryContext(ctx,
			"SELECT "+learningColumns+" FROM learnings WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query learnings: %w", err)
		}
		for rows.Next() {
			l, err := scanLearning(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			found[l.ID] = l
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}

	out := make([]*types.Learning, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, id := range ids {
		if l, ok := found[id]; ok && !seen[id] {
			out = append(out, l)
			seen[id] = true
		}
	}
	return out, nil
}

// GetAll returns every learning ordered by id
func (s *SQLiteStorage) GetAll(ctx context.Context, includeContent bool) ([]*types.Learning, error) {
	columns := metadataColumns
	if includeContent {
		columns = learningColumns
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM learnings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list learnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetVector returns the stored embedding of id
func (s *SQLiteStorage) GetVector(ctx context.Context, id string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM vec_learnings WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vector: %w", err)
	}
	return deserializeVector(blob), nil
}

// KNNSearch embeds queryText and runs a scoped nearest-neighbour search
func (s *SQLiteStorage) KNNSearch(ctx context.Context, queryText string, scopeRepos []string, k int, threshold float64) ([]types.Result, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", embedder.ErrNoProviderEnabled)
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: queryText})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.KNNSearchVector(ctx, emb.Vector, ScopeFilter{Repos: scopeRepos}, k, threshold)
}

// KNNSearchVector over-fetches 3k raw neighbours, then applies the scope
// filter and distance threshold
func (s *SQLiteStorage) KNNSearchVector(ctx context.Context, vector []float32, scope ScopeFilter, k int, threshold float64) ([]types.Result, error) {
	if k <= 0 {
		return []types.Result{}, nil
	}

	candidates, err := nearestNeighbors(ctx, s.db, vector, 3*k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	learnings, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Learning, len(learnings))
	for _, l := range learnings {
		byID[l.ID] = l
	}

	results := make([]types.Result, 0, k)
	for _, c := range candidates {
		l, ok := byID[c.id]
		if !ok || !scope.Matches(l.Metadata) || c.distance > threshold {
			continue
		}
		results = append(results, types.Result{
			ID:               l.ID,
			Document:         l.Content,
			Metadata:         l.Metadata,
			Distance:         c.distance,
			OriginalDistance: c.distance,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// FTSSearch returns ids whose content matches any keyword of queryText
func (s *SQLiteStorage) FTSSearch(ctx context.Context, queryText string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	match := buildFTSQuery(queryText)
	if match == "" {
		return ids, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM fts_learnings WHERE fts_learnings MATCH ?", match)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Count returns the number of stored learnings
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM learnings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count learnings: %w", err)
	}
	return n, nil
}

// Stats summarizes the store
func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByScope: map[string]int{},
		ByTopic: map[string]int{},
		ByRepo:  map[string]int{},
		Mode:    BuildMode,
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Total = total

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT scope, COUNT(*) FROM learnings GROUP BY scope", stats.ByScope},
		{"SELECT topic, COUNT(*) FROM learnings GROUP BY topic", stats.ByTopic},
		{"SELECT repo, COUNT(*) FROM learnings WHERE scope = 'repo' GROUP BY repo", stats.ByRepo},
	}
	for _, g := range groups {
		if err := countGroups(ctx, s.db, g.query, g.into); err != nil {
			return nil, err
		}
	}

	run, err := s.lastIndexRun(ctx)
	if err != nil {
		return nil, err
	}
	stats.LastRun = run
	return stats, nil
}

func countGroups(ctx context.Context, q querier, query string, into map[string]int) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group learnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// RecordIndexRun stores the outcome of an indexing run
func (s *SQLiteStorage) RecordIndexRun(ctx context.Context, run *IndexRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO index_runs (id, started_at, finished_at, files_indexed, files_failed, files_pruned)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.FilesIndexed, run.FilesFailed, run.FilesPruned)
	if err != nil {
		return fmt.Errorf("failed to record index run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) lastIndexRun(ctx context.Context) (*IndexRun, error) {
	var (
		run               IndexRun
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, files_indexed, files_failed, files_pruned
		FROM index_runs ORDER BY finished_at DESC LIMIT 1`).
		Scan(&run.ID, &started, &finished, &run.FilesIndexed, &run.FilesFailed, &run.FilesPruned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index runs: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}
