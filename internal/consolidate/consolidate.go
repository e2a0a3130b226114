// Package consolidate finds learnings that are candidates for merging,
// archiving or promotion to global scope.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/learnings-mcp/internal/config"
	"github.com/dshills/learnings-mcp/internal/storage"
	"github.com/dshills/learnings-mcp/pkg/types"
)

const (
	// DefaultLimit bounds each category of a report
	DefaultLimit = 20

	// neighbours is how many nearest learnings are compared per learning
	neighbours = 5

	// maxMarkers bounds the markers listed per candidate
	maxMarkers = 2

	concurrency = 4
)

// Mode selects which categories a report covers
type Mode string

const (
	ModeAll        Mode = "all"
	ModeDuplicates Mode = "duplicates"
	ModeOutdated   Mode = "outdated"
	ModeScope      Mode = "scope"
)

// ErrInvalidMode is returned for an unknown Mode
var ErrInvalidMode = errors.New("mode must be one of all, duplicates, outdated, scope")

// ParseMode validates a mode name. The empty string means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeDuplicates, ModeOutdated, ModeScope:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Store is the subset of storage used for discovery
type Store interface {
	GetAll(ctx context.Context, includeContent bool) ([]*types.Learning, error)
	GetVector(ctx context.Context, id string) ([]float32, error)
	KNNSearchVector(ctx context.Context, vector []float32, scope storage.ScopeFilter, k int, threshold float64) ([]types.Result, error)
}

// Candidate is a single learning flagged by discovery
type Candidate struct {
	ID      string   `json:"id"`
	File    string   `json:"file"`
	Path    string   `json:"path"`
	Repo    string   `json:"repo,omitempty"`
	Markers []string `json:"markers,omitempty"`
}

// Cluster is a group of near-identical learnings
type Cluster struct {
	Files []Candidate `json:"files"`
	Count int         `json:"count"`
}

// Summary counts what a report found
type Summary struct {
	DuplicateClusters  int `json:"duplicate_clusters"`
	OutdatedCandidates int `json:"outdated_candidates"`
	ScopeCandidates    int `json:"scope_candidates"`
	LimitApplied       int `json:"limit_applied"`
}

// Report aggregates every discovery category
type Report struct {
	Status          string      `json:"status"`
	TotalDocuments  int         `json:"total_documents"`
	Duplicates      []Cluster   `json:"duplicates"`
	Outdated        []Candidate `json:"outdated"`
	ScopeCandidates []Candidate `json:"scope_candidates"`
	Summary         Summary     `json:"summary"`
}

// Options configures a discovery run
type Options struct {
	Mode               Mode
	Limit              int
	DuplicateThreshold float64
	OutdatedKeywords   []string
	ScopeKeywords      []string
}

// OptionsFromConfig builds options for every category
func OptionsFromConfig(cfg config.ConsolidationConfig) Options {
	return Options{
		Mode:               ModeAll,
		Limit:              DefaultLimit,
		DuplicateThreshold: cfg.DuplicateThreshold,
		OutdatedKeywords:   cfg.OutdatedKeywords,
		ScopeKeywords:      cfg.ScopeKeywords,
	}
}

// Run builds a report for the categories selected by opts.Mode
func Run(ctx context.Context, store Store, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	all, err := store.GetAll(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load learnings: %w", err)
	}

	report := &Report{
		Status:          "success",
		TotalDocuments:  len(all),
		Duplicates:      []Cluster{},
		Outdated:        []Candidate{},
		ScopeCandidates: []Candidate{},
	}

	if opts.Mode == ModeAll || opts.Mode == ModeDuplicates {
		if report.Duplicates, err = findDuplicates(ctx, store, all, opts.DuplicateThreshold, opts.Limit); err != nil {
			return nil, err
		}
	}
	if opts.Mode == ModeAll || opts.Mode == ModeOutdated {
		report.Outdated = FindOutdated(all, opts.OutdatedKeywords, opts.Limit)
	}
	if opts.Mode == ModeAll || opts.Mode == ModeScope {
		report.ScopeCandidates = FindScopeCandidates(all, opts.ScopeKeywords, opts.Limit)
	}

	report.Summary = Summary{
		DuplicateClusters:  len(report.Duplicates),
		OutdatedCandidates: len(report.Outdated),
		ScopeCandidates:    len(report.ScopeCandidates),
		LimitApplied:       opts.Limit,
	}
	log.Info().Int("documents", report.TotalDocuments).Int("duplicates", report.Summary.DuplicateClusters).
		Int("outdated", report.Summary.OutdatedCandidates).Int("scope", report.Summary.ScopeCandidates).
		Msg("consolidation discovery complete")
	return report, nil
}

// FindDuplicates groups learnings whose stored vectors lie within threshold
// of each other, across all scopes. Clusters and their members are ordered
// by id.
func FindDuplicates(ctx context.Context, store Store, threshold float64, limit int) ([]Cluster, error) {
	all, err := store.GetAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load learnings: %w", err)
	}
	return findDuplicates(ctx, store, all, threshold, limit)
}

func findDuplicates(ctx context.Context, store Store, all []*types.Learning, threshold float64, limit int) ([]Cluster, error) {
	if len(all) < 2 {
		return []Cluster{}, nil
	}

	index := make(map[string]int, len(all))
	for i, l := range all {
		index[l.ID] = i
	}

	near := make([][]string, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, l := range all {
		g.Go(func() error {
			vec, err := store.GetVector(gctx, l.ID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load vector of %s: %w", l.ID, err)
			}
			results, err := store.KNNSearchVector(gctx, vec, storage.ScopeFilter{AllScopes: true}, neighbours+1, threshold)
			if err != nil {
				return fmt.Errorf("failed to search neighbours of %s: %w", l.ID, err)
			}
			for _, r := range results {
				if r.ID != l.ID {
					near[i] = append(near[i], r.ID)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sets := newUnionFind(len(all))
	for i, ids := range near {
		for _, id := range ids {
			if j, ok := index[id]; ok {
				sets.union(i, j)
			}
		}
	}

	groups := make(map[int][]*types.Learning)
	for i, l := range all {
		root := sets.find(i)
		groups[root] = append(groups[root], l)
	}

	clusters := make([]Cluster, 0)
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(a, b int) bool { return members[a].ID < members[b].ID })
		files := make([]Candidate, len(members))
		for k, m := range members {
			files[k] = candidate(m, nil)
		}
		clusters = append(clusters, Cluster{Files: files, Count: len(files)})
	}
	sort.Slice(clusters, func(a, b int) bool { return clusters[a].Files[0].ID < clusters[b].Files[0].ID })

	if len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters, nil
}

// FindOutdated returns learnings mentioning any of the outdated markers.
// learnings must carry content.
func FindOutdated(learnings []*types.Learning, markers []string, limit int) []Candidate {
	return findMarked(learnings, markers, limit, func(*types.Learning) bool { return true })
}

// FindScopeCandidates returns repo-scoped learnings mentioning a keyword of
// general relevance, candidates for promotion to global scope
func FindScopeCandidates(learnings []*types.Learning, keywords []string, limit int) []Candidate {
	return findMarked(learnings, keywords, limit, func(l *types.Learning) bool {
		return l.Metadata.Scope == types.ScopeRepo
	})
}

func findMarked(learnings []*types.Learning, markers []string, limit int, eligible func(*types.Learning) bool) []Candidate {
	out := make([]Candidate, 0)
	for _, l := range learnings {
		if len(out) >= limit {
			break
		}
		if !eligible(l) {
			continue
		}
		content := strings.ToLower(l.Content)
		var matched []string
		for _, m := range markers {
			if m != "" && strings.Contains(content, strings.ToLower(m)) {
				matched = append(matched, m)
			}
		}
		if len(matched) > 0 {
			if len(matched) > maxMarkers {
				matched = matched[:maxMarkers]
			}
			out = append(out, candidate(l, matched))
		}
	}
	return out
}

func candidate(l *types.Learning, markers []string) Candidate {
	c := Candidate{
		ID:      l.ID,
		Path:    l.Metadata.FilePath,
		Repo:    l.Metadata.Repo,
		Markers: markers,
	}
	if c.Path != "" {
		c.File = filepath.Base(c.Path)
	} else {
		c.File = shortID(l.ID)
	}
	return c
}

// shortID is the display prefix of a learning id
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
