// Package searcher implements hybrid learning search: parallel per-keyword
// vector queries merged, reranked by lexical signals and split into
// confidence tiers.
//
// # Basic Usage
//
//	s := searcher.New(searcher.StorageOpener(opener), searcher.OptionsFromConfig(cfg.Learnings))
//
//	resp := s.Search(ctx, searcher.Request{
//	    Keywords:   []string{"prompt caching", "TTL"},
//	    ScopeRepos: []string{"my-service"},
//	    MaxResults: 5,
//	})
//
//	for _, r := range resp.HighConfidence {
//	    fmt.Printf("%s (%.3f)\n", r.ID, r.Distance)
//	}
//
// # Pipeline
//
//  1. One sub-query per keyword runs concurrently, each on its own store
//     handle, fetching MaxResults + len(ExcludeIDs) neighbours.
//  2. Merge keeps the nearest occurrence of every id.
//  3. Rerank multiplies each distance by (1 - weight*overlap), where overlap
//     is the fraction of query keywords present in the document, then
//     subtracts FTSBoost for ids matched by stemmed full-text search.
//  4. Excluded ids and tag/category filter misses are removed.
//  5. ApplyFloor drops results with zero keyword overlap and a raw distance
//     of KeywordFloorDistance or more.
//  6. Tier splits the rest at the high and possible thresholds.
//
// Peek mode returns a single list: high-confidence results first, then
// possibly-relevant ones, never more than MaxResults.
//
// # Failures
//
// Search always returns a Response. A failing sub-query is logged and
// skipped. If every sub-query fails, or the embedding model or store is
// unavailable, the status is "error". A request with no keywords returns
// "empty" without opening the store, and a search that ran but found
// nothing returns "no_results".
package searcher
