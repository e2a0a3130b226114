package indexer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/phuslu/log"

	"github.com/dshills/learnings-mcp/internal/storage"
	"github.com/dshills/learnings-mcp/internal/workspace"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// ErrIndexingInProgress is returned when a full run is already underway
var ErrIndexingInProgress = errors.New("indexing already in progress")

// ErrNotLearningFile is returned for paths that are not markdown learnings
var ErrNotLearningFile = errors.New("not a markdown learning file")

// Config contains configuration for the indexer
type Config struct {
	GlobalDir      string
	RepoSearchPath string
	Workers        int // Number of concurrent embedding workers (default: runtime.NumCPU())
}

// Statistics contains statistics about an indexing run
type Statistics struct {
	RunID           string         `json:"run_id"`
	FilesDiscovered int            `json:"files_discovered"`
	FilesIndexed    int            `json:"files_indexed"`
	FilesFailed     int            `json:"files_failed"`
	FilesPruned     int            `json:"files_pruned"`
	Global          int            `json:"global"`
	Repos           map[string]int `json:"repos"`
	Duration        time.Duration  `json:"duration_ns"`
	ErrorMessages   []string       `json:"errors,omitempty"`
}

// Indexer coordinates the indexing pipeline: discover -> parse -> embed/store
type Indexer struct {
	storage storage.Storage
	cfg     Config
	lock    IndexLock
}

// New creates a new Indexer instance
func New(store storage.Storage, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Indexer{storage: store, cfg: cfg}
}

// DocumentID derives a learning id from the canonical path of its file, so
// the same file reached through a symlink keeps its id
func DocumentID(path string) string {
	sum := md5.Sum([]byte(workspace.Canonical(path)))
	return hex.EncodeToString(sum[:])
}

// Indexing reports whether a full run is underway
func (idx *Indexer) Indexing() bool {
	return idx.lock.Held()
}

// IndexAll indexes every discovered learning file and removes learnings
// whose files no longer exist. Files that fail are counted and reported in
// the statistics without aborting the run.
func (idx *Indexer) IndexAll(ctx context.Context) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()
	stats := &Statistics{
		RunID:         uuid.NewString(),
		Repos:         make(map[string]int),
		ErrorMessages: make([]string, 0),
	}

	discovery, err := Discover(idx.cfg.GlobalDir, idx.cfg.RepoSearchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	stats.FilesDiscovered = len(discovery.Files)
	for _, f := range discovery.Files {
		if f.Scope == types.ScopeGlobal {
			stats.Global++
		} else {
			stats.Repos[f.Repo]++
		}
	}
	log.Info().Str("run_id", stats.RunID).Int("files", stats.FilesDiscovered).Int("global", stats.Global).Int("repos", len(stats.Repos)).
		Msg("discovered learning files")

	if err := idx.indexFiles(ctx, discovery.Files, stats); err != nil {
		return nil, err
	}

	pruned, err := idx.prune(ctx, discovery.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to prune removed learnings: %w", err)
	}
	stats.FilesPruned = pruned
	stats.Duration = time.Since(startTime)

	run := &storage.IndexRun{
		ID:           stats.RunID,
		StartedAt:    startTime,
		FinishedAt:   startTime.Add(stats.Duration),
		FilesIndexed: stats.FilesIndexed,
		FilesFailed:  stats.FilesFailed,
		FilesPruned:  stats.FilesPruned,
	}
	if err := idx.storage.RecordIndexRun(ctx, run); err != nil {
		log.Warn().Str("run_id", stats.RunID).Err(err).Msg("failed to record index run")
	}

	log.Info().Str("run_id", stats.RunID).Int("indexed", stats.FilesIndexed).Int("failed", stats.FilesFailed).
		Int("pruned", stats.FilesPruned).Dur("took", stats.Duration).Msg("indexing complete")
	return stats, nil
}

// indexFiles embeds and stores files on a bounded worker pool
func (idx *Indexer) indexFiles(ctx context.Context, files []File, stats *Statistics) error {
	pool, err := ants.NewPool(idx.cfg.Workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex // Protect stats.ErrorMessages
		indexed atomic.Int32
		failed  atomic.Int32
	)
	fail := func(path string, err error) {
		failed.Add(1)
		mu.Lock()
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
		mu.Unlock()
		log.Warn().Str("file", path).Err(err).Msg("failed to index learning")
	}

	for _, f := range files {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				fail(f.Path, err)
				return
			}
			if _, err := idx.indexFile(ctx, f); err != nil {
				fail(f.Path, err)
				return
			}
			indexed.Add(1)
		})
		if err != nil {
			wg.Done()
			fail(f.Path, err)
		}
	}
	wg.Wait()

	stats.FilesIndexed = int(indexed.Load())
	stats.FilesFailed = int(failed.Load())
	return ctx.Err()
}

// prune removes stored learnings whose files were not discovered
func (idx *Indexer) prune(ctx context.Context, files []File) (int, error) {
	onDisk := make(map[string]struct{}, len(files))
	for _, f := range files {
		onDisk[DocumentID(f.Path)] = struct{}{}
	}

	stored, err := idx.storage.GetAll(ctx, false)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, l := range stored {
		if _, ok := onDisk[l.ID]; !ok {
			stale = append(stale, l.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return idx.storage.DeleteMany(ctx, stale)
}

// IndexFile indexes a single learning file. A file that no longer exists is
// removed from the store instead.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*types.Learning, error) {
	if !IsLearningFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotLearningFile, path)
	}
	canonical := workspace.Canonical(path)
	if _, err := os.Stat(canonical); errors.Is(err, os.ErrNotExist) {
		return nil, idx.RemoveFile(ctx, canonical)
	}

	scope, repo := workspace.RepoFromPath(canonical, idx.cfg.GlobalDir)
	return idx.indexFile(ctx, File{Path: canonical, Scope: scope, Repo: repo})
}

// RemoveFile deletes the learning stored for path
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	return idx.storage.Delete(ctx, DocumentID(path))
}

// indexFile parses one file and upserts it
func (idx *Indexer) indexFile(ctx context.Context, f File) (*types.Learning, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	learning, err := BuildLearning(f, content)
	if err != nil {
		return nil, err
	}
	if err := idx.storage.Upsert(ctx, learning); err != nil {
		return nil, err
	}

	log.Debug().Str("file", f.Path).Str("id", learning.ID).Str("topic", learning.Metadata.Topic).Msg("indexed learning")
	return learning, nil
}

// BuildLearning turns file content into a learning ready for storage
func BuildLearning(f File, content []byte) (*types.Learning, error) {
	doc, err := ParseMarkdown(content)
	if err != nil {
		return nil, err
	}

	return &types.Learning{
		ID:      DocumentID(f.Path),
		Content: string(content),
		Metadata: types.Metadata{
			FilePath:  f.Path,
			Scope:     f.Scope,
			Repo:      f.Repo,
			Topic:     DetectTopic(doc.Topic, doc.Tags, doc.Body),
			Keywords:  ExtractKeywords(doc.Tags, doc.Body),
			Summary:   doc.Summary,
			CreatedAt: doc.CreatedAt,
		},
	}, nil
}
