package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/learnings-mcp/internal/config"
	"github.com/dshills/learnings-mcp/internal/embedder"
	"github.com/dshills/learnings-mcp/internal/keywords"
	"github.com/dshills/learnings-mcp/internal/storage"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// DefaultMaxResults is used when a request does not set MaxResults
const DefaultMaxResults = 5

// Store is the part of the document store a sub-query needs
type Store interface {
	KNNSearch(ctx context.Context, queryText string, scopeRepos []string, k int, threshold float64) ([]types.Result, error)
	FTSSearch(ctx context.Context, queryText string) (map[string]struct{}, error)
	Close() error
}

// OpenFunc opens an independent store handle. It is called once per
// sub-query, so handles are never shared between goroutines.
type OpenFunc func(ctx context.Context) (Store, error)

// StorageOpener adapts a storage.Opener to an OpenFunc
func StorageOpener(o storage.Opener) OpenFunc {
	return func(ctx context.Context) (Store, error) {
		s, err := o.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Options are the read-only ranking knobs
type Options struct {
	HighThreshold     float64
	PossibleThreshold float64
	KeywordWeight     float64
	SubQueryTimeout   time.Duration
}

// OptionsFromConfig extracts ranking options from the learnings config
func OptionsFromConfig(cfg config.LearningsConfig) Options {
	return Options{
		HighThreshold:     cfg.HighConfidenceThreshold,
		PossibleThreshold: cfg.PossiblyRelevantThreshold,
		KeywordWeight:     cfg.KeywordBoostWeight,
		SubQueryTimeout:   cfg.SubQueryTimeout,
	}
}

// Request contains parameters for a search
type Request struct {
	// Query is searched as a single keyword unless Keywords is set
	Query    string
	Keywords []string

	ScopeRepos []string
	MaxResults int
	ExcludeIDs []string
	Peek       bool

	// HighThreshold overrides the configured high-confidence threshold
	HighThreshold *float64
}

// Response is the structured outcome of every search, including failures
type Response struct {
	Status           string            `json:"status"`
	Message          string            `json:"message,omitempty"`
	Query            string            `json:"query,omitempty"`
	KeywordsSearched []string          `json:"keywords_searched,omitempty"`
	ReposSearched    []string          `json:"repos_searched"`
	Filters          *keywords.Filters `json:"filters,omitempty"`
	Count            int               `json:"count"`

	// Tiered mode
	*Tiers

	// Peek mode
	Learnings []types.Result `json:"learnings,omitempty"`

	// Err is the underlying error for empty, no_results and error statuses
	Err error `json:"-"`
}

// subResult is the outcome of one keyword sub-query
type subResult struct {
	results []types.Result
	ftsIDs  map[string]struct{}
	err     error
}

// Searcher runs multi-keyword hybrid searches
type Searcher struct {
	open OpenFunc
	opts Options
}

// New creates a Searcher
func New(open OpenFunc, opts Options) *Searcher {
	return &Searcher{open: open, opts: opts}
}

// Search runs one KNN sub-query per keyword concurrently, merges the results,
// reranks them and splits them into confidence tiers. It never returns nil.
func (s *Searcher) Search(ctx context.Context, req Request) *Response {
	n := req.MaxResults
	if n <= 0 {
		n = DefaultMaxResults
	}

	resp, kws, filters := newResponse(req)

	high := s.opts.HighThreshold
	if req.HighThreshold != nil {
		high = *req.HighThreshold
		if high <= 0 || high >= s.opts.PossibleThreshold {
			return errorResponse(resp, fmt.Errorf("%w: %.2f must be above 0 and below the possibly relevant threshold %.2f",
				ErrInvalidThreshold, high, s.opts.PossibleThreshold))
		}
	}

	if len(kws) == 0 {
		resp.Status = StatusEmpty
		resp.Message = "No keywords provided"
		resp.Err = ErrEmptyQuery
		return resp
	}

	exclude := make(map[string]struct{}, len(req.ExcludeIDs))
	for _, id := range req.ExcludeIDs {
		if id = strings.TrimSpace(id); id != "" {
			exclude[id] = struct{}{}
		}
	}
	querySize := n + len(exclude)

	subs := s.runSubQueries(ctx, kws, req.ScopeRepos, querySize)

	var (
		successes [][]types.Result
		ftsSets   []map[string]struct{}
		failures  []error
	)
	for i, sub := range subs {
		if sub.err != nil {
			if isFatal(sub.err) {
				return errorResponse(resp, sub.err)
			}
			log.Warn().Str("keyword", kws[i]).Err(sub.err).Msg("sub-query failed, skipping")
			failures = append(failures, sub.err)
			continue
		}
		successes = append(successes, sub.results)
		ftsSets = append(ftsSets, sub.ftsIDs)
	}
	if len(successes) == 0 {
		return errorResponse(resp, fmt.Errorf("%w: all %d sub-queries failed: %w",
			ErrSubQueryFailed, len(failures), errors.Join(failures...)))
	}

	raw := Merge(successes...)
	reranked := Rerank(raw, keywords.Union(kws...), s.opts.KeywordWeight, mergeIDSets(ftsSets...))

	kept := make([]types.Result, 0, len(reranked))
	for _, r := range reranked {
		if _, skip := exclude[r.ID]; skip {
			continue
		}
		if !matchesFilters(r.Metadata, filters) {
			continue
		}
		kept = append(kept, r)
	}

	tiers := Tier(ApplyFloor(kept), high, s.opts.PossibleThreshold)

	log.Debug().Int("keywords", len(kws)).Int("candidates", len(raw)).
		Int("high", len(tiers.HighConfidence)).Int("possible", len(tiers.PossiblyRelevant)).
		Msg("search complete")

	if req.Peek {
		resp.Learnings = Peek(tiers, n)
		resp.Count = len(resp.Learnings)
		if resp.Count == 0 {
			resp.Status = StatusNoResults
			resp.Message = "No relevant learnings found"
			resp.Err = ErrNoResults
			return resp
		}
		resp.Status = StatusSuccess
		resp.Message = fmt.Sprintf("Found %d learning(s)", resp.Count)
		return resp
	}

	resp.Tiers = tiers.Truncate(n)
	resp.Count = resp.Tiers.Total()
	if resp.Count == 0 {
		resp.Status = StatusNoResults
		resp.Message = fmt.Sprintf("No relevant learnings found (searched %d candidates, none met distance < %.2f threshold)",
			len(raw), s.opts.PossibleThreshold)
		resp.Err = ErrNoResults
		return resp
	}

	var parts []string
	if h := len(resp.HighConfidence); h > 0 {
		parts = append(parts, fmt.Sprintf("%d high confidence", h))
	}
	if p := len(resp.PossiblyRelevant); p > 0 {
		parts = append(parts, fmt.Sprintf("%d possibly relevant", p))
	}
	resp.Status = StatusSuccess
	resp.Message = fmt.Sprintf("Found %s learning(s)", strings.Join(parts, " + "))
	return resp
}

// runSubQueries runs one sub-query per keyword and returns the outcomes in
// keyword order. A failing task records its error and does not cancel the
// others.
func (s *Searcher) runSubQueries(ctx context.Context, kws []string, scopeRepos []string, k int) []subResult {
	subs := make([]subResult, len(kws))

	var g errgroup.Group
	for i, kw := range kws {
		g.Go(func() error {
			subs[i] = s.subQuery(ctx, kw, scopeRepos, k)
			return nil
		})
	}
	_ = g.Wait()

	return subs
}

// subQuery runs a single keyword search on its own store handle
func (s *Searcher) subQuery(ctx context.Context, kw string, scopeRepos []string, k int) (sub subResult) {
	defer func() {
		if r := recover(); r != nil {
			sub = subResult{err: fmt.Errorf("%w: panic: %v", ErrSubQueryFailed, r)}
		}
	}()

	if s.opts.SubQueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SubQueryTimeout)
		defer cancel()
	}

	store, err := s.open(ctx)
	if err != nil {
		return subResult{err: fmt.Errorf("keyword %q: %w", kw, err)}
	}
	defer func() { _ = store.Close() }()

	results, err := store.KNNSearch(ctx, kw, scopeRepos, k, 1.0)
	if err != nil {
		return subResult{err: fmt.Errorf("%w: keyword %q: %w", ErrSubQueryFailed, kw, err)}
	}
	for i := range results {
		results[i].MatchedKeyword = kw
	}

	ftsIDs, err := store.FTSSearch(ctx, kw)
	if err != nil {
		log.Warn().Str("keyword", kw).Err(err).Msg("full-text search failed, continuing without boost")
		ftsIDs = nil
	}

	return subResult{results: results, ftsIDs: ftsIDs}
}

// ErrorResponse is the response of a search that could not run, for
// callers that fail before Search is reached
func ErrorResponse(req Request, err error) *Response {
	resp, _, _ := newResponse(req)
	return errorResponse(resp, err)
}

// newResponse fills the request echo fields shared by every status
func newResponse(req Request) (*Response, []string, keywords.Filters) {
	kws, filters := requestKeywords(req)
	resp := &Response{
		Query:            req.Query,
		KeywordsSearched: kws,
		ReposSearched:    nonNil(req.ScopeRepos),
	}
	if !filters.Empty() {
		resp.Filters = &filters
	}
	return resp, kws, filters
}

// requestKeywords returns the non-blank keywords to search, with tag and
// category filters stripped from the first one
func requestKeywords(req Request) ([]string, keywords.Filters) {
	source := req.Keywords
	if len(source) == 0 {
		source = []string{req.Query}
	}

	kws := make([]string, 0, len(source))
	var filters keywords.Filters
	for i, kw := range source {
		if i == 0 {
			kw, filters = keywords.ParseFilters(kw)
		}
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	return kws, filters
}

// matchesFilters applies tag and category filters to a learning
func matchesFilters(m types.Metadata, f keywords.Filters) bool {
	if f.Category != "" && !strings.EqualFold(m.Topic, f.Category) {
		return false
	}
	for _, tag := range f.Tags {
		found := false
		for _, kw := range m.Keywords {
			if strings.EqualFold(kw, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// isFatal reports whether err must abort the whole search
func isFatal(err error) bool {
	return errors.Is(err, embedder.ErrModelUnavailable) || errors.Is(err, storage.ErrStoreUnavailable)
}

func errorResponse(resp *Response, err error) *Response {
	log.Error().Str("query", resp.Query).Err(err).Msg("search failed")
	resp.Status = StatusError
	resp.Message = err.Error()
	resp.Err = err
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
