package searcher

import "github.com/dshills/learnings-mcp/pkg/types"

// Merge folds sub-query results in the order given and keeps the nearest
// occurrence of every id. On an exact distance tie the occurrence folded
// first wins. The output is sorted by distance, then id.
func Merge(subResults ...[]types.Result) []types.Result {
	best := make(map[string]int)
	merged := make([]types.Result, 0)

	for _, results := range subResults {
		for _, r := range results {
			i, seen := best[r.ID]
			if !seen {
				best[r.ID] = len(merged)
				merged = append(merged, r)
				continue
			}
			if r.Distance < merged[i].Distance {
				merged[i] = r
			}
		}
	}

	sortResults(merged)
	return merged
}

// mergeIDSets unions full-text match sets
func mergeIDSets(sets ...map[string]struct{}) map[string]struct{} {
	union := make(map[string]struct{})
	for _, set := range sets {
		for id := range set {
			union[id] = struct{}{}
		}
	}
	return union
}
