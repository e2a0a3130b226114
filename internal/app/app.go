// Package app wires the configured components together. The CLI and the MCP
// server share one App per process.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/phuslu/log"

	"github.com/dshills/learnings-mcp/internal/config"
	"github.com/dshills/learnings-mcp/internal/consolidate"
	"github.com/dshills/learnings-mcp/internal/embedder"
	"github.com/dshills/learnings-mcp/internal/indexer"
	"github.com/dshills/learnings-mcp/internal/searcher"
	"github.com/dshills/learnings-mcp/internal/storage"
	"github.com/dshills/learnings-mcp/internal/workspace"
)

// App holds all application components and dependencies
type App struct {
	Config   *config.Config
	Home     string
	Embedder embedder.Embedder
	Storage  storage.Storage
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Actions  *consolidate.Actor
}

// New opens and migrates the store and builds the indexer, searcher and
// consolidation actions. Search handles skip migrations. The embedding
// model is not contacted until the first embedding is needed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	emb := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		CacheSize: cfg.Embedding.CacheSize,
	})

	store, err := storage.OpenSQLiteStorage(ctx, cfg.SQLite.DBPath, emb)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	idx := indexer.New(store, indexer.Config{
		GlobalDir:      cfg.Learnings.GlobalDir,
		RepoSearchPath: cfg.Learnings.RepoSearchPath,
	})
	a := &App{
		Config:   cfg,
		Home:     home,
		Embedder: emb,
		Storage:  store,
		Indexer:  idx,
		Searcher: searcher.New(
			searcher.StorageOpener(storage.Opener{Path: cfg.SQLite.DBPath, Embedder: emb, SkipMigrations: true}),
			searcher.OptionsFromConfig(cfg.Learnings),
		),
		Actions: consolidate.NewActor(store, idx, cfg.Learnings.GlobalDir, cfg.Learnings.ArchiveDir),
	}

	log.Debug().Str("db", cfg.SQLite.DBPath).Str("provider", emb.Provider()).Str("model", emb.Model()).
		Msg("application initialized")
	return a, nil
}

// ScopeRepos returns the repositories visible from dir. An empty dir means
// the process working directory.
func (a *App) ScopeRepos(dir string) ([]string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}
	return workspace.DetectHierarchy(dir, a.Home), nil
}

// Consolidate runs consolidation discovery with the configured thresholds
func (a *App) Consolidate(ctx context.Context, mode consolidate.Mode, limit int, threshold float64) (*consolidate.Report, error) {
	opts := consolidate.OptionsFromConfig(a.Config.Consolidation)
	opts.Mode = mode
	if limit > 0 {
		opts.Limit = limit
	}
	if threshold > 0 {
		opts.DuplicateThreshold = threshold
	}
	return consolidate.Run(ctx, a.Storage, opts)
}

// Close releases the store and the embedding provider
func (a *App) Close() error {
	err := a.Storage.Close()
	if cerr := a.Embedder.Close(); err == nil {
		err = cerr
	}
	return err
}
