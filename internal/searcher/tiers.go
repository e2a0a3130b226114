package searcher

import "github.com/dshills/learnings-mcp/pkg/types"

// KeywordFloorDistance is the raw distance below which a result is kept even
// without any keyword overlap
const KeywordFloorDistance = 0.25

// Tiers splits reranked results by confidence
type Tiers struct {
	HighConfidence   []types.Result `json:"high_confidence"`
	PossiblyRelevant []types.Result `json:"possibly_relevant"`
}

// Total returns the number of results across both tiers
func (t *Tiers) Total() int {
	return len(t.HighConfidence) + len(t.PossiblyRelevant)
}

// ApplyFloor drops results with no lexical grounding unless their raw
// embedding distance is very small
func ApplyFloor(results []types.Result) []types.Result {
	kept := make([]types.Result, 0, len(results))
	for _, r := range results {
		if r.KeywordOverlap == 0 && r.OriginalDistance >= KeywordFloorDistance {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// Tier partitions results into d < high and high <= d < possible. Anything
// else is dropped. Each tier is sorted by distance.
func Tier(results []types.Result, high, possible float64) *Tiers {
	t := &Tiers{
		HighConfidence:   []types.Result{},
		PossiblyRelevant: []types.Result{},
	}
	for _, r := range results {
		switch {
		case r.Distance < high:
			t.HighConfidence = append(t.HighConfidence, r)
		case r.Distance < possible:
			t.PossiblyRelevant = append(t.PossiblyRelevant, r)
		}
	}
	sortResults(t.HighConfidence)
	sortResults(t.PossiblyRelevant)
	return t
}

// Truncate caps each tier at n results
func (t *Tiers) Truncate(n int) *Tiers {
	return &Tiers{
		HighConfidence:   truncate(t.HighConfidence, n),
		PossiblyRelevant: truncate(t.PossiblyRelevant, n),
	}
}

// Peek returns at most n results: high-confidence first, backfilled from the
// possibly-relevant tier. Blocks are never interleaved.
func Peek(t *Tiers, n int) []types.Result {
	out := make([]types.Result, 0, n)
	out = append(out, truncate(t.HighConfidence, n)...)
	if remaining := n - len(out); remaining > 0 {
		out = append(out, truncate(t.PossiblyRelevant, remaining)...)
	}
	return out
}

func truncate(results []types.Result, n int) []types.Result {
	if n < 0 {
		n = 0
	}
	if len(results) > n {
		results = results[:n]
	}
	out := make([]types.Result, len(results))
	copy(out, results)
	return out
}
