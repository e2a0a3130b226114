package searcher

import (
	"sort"

	"github.com/dshills/learnings-mcp/internal/keywords"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// FTSBoost is the fixed distance reduction for a full-text match
const FTSBoost = 0.05

// KeywordOverlap returns the fraction of kw present as tokens of document
func KeywordOverlap(kw map[string]struct{}, document string) float64 {
	if len(kw) == 0 {
		return 0
	}
	tokens := keywords.TokenSet(document)
	matches := 0
	for k := range kw {
		if _, ok := tokens[k]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(kw))
}

// Rerank applies the keyword and full-text boosts to a copy of results and
// returns it sorted by adjusted distance. Both boosts only ever lower a
// distance.
func Rerank(results []types.Result, kw map[string]struct{}, weight float64, ftsIDs map[string]struct{}) []types.Result {
	out := make([]types.Result, len(results))
	copy(out, results)

	for i := range out {
		r := &out[i]
		overlap := KeywordOverlap(kw, r.Document)
		r.KeywordOverlap = overlap
		r.OriginalDistance = r.Distance
		r.Distance *= 1 - weight*overlap

		_, r.FTSMatch = ftsIDs[r.ID]
		if r.FTSMatch {
			r.Distance -= FTSBoost
			if r.Distance < 0 {
				r.Distance = 0
			}
		}
	}

	sortResults(out)
	return out
}

// sortResults orders by distance, then id
func sortResults(results []types.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
}
