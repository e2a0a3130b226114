package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/learnings-mcp/internal/keywords"
	"github.com/dshills/learnings-mcp/pkg/types"
)

func result(id, doc string, distance float64) types.Result {
	return types.Result{ID: id, Document: doc, Distance: distance, Metadata: types.Metadata{Scope: types.ScopeGlobal}}
}

func TestKeywordOverlap(t *testing.T) {
	kw := keywords.Extract("sqlite wal checkpoint")

	assert.InDelta(t, 1.0, KeywordOverlap(kw, "SQLite WAL checkpoint starvation"), 1e-12)
	assert.InDelta(t, 2.0/3.0, KeywordOverlap(kw, "wal mode in sqlite"), 1e-12)
	assert.Equal(t, 0.0, KeywordOverlap(kw, "grafana alerting"))
	assert.Equal(t, 0.0, KeywordOverlap(nil, "anything"))
	// Token match, not substring match
	assert.Equal(t, 0.0, KeywordOverlap(keywords.Extract("wal"), "walrus"))
}

func TestRerankMonotonic(t *testing.T) {
	raw := []types.Result{
		result("a", "slash command pdf layout", 0.40),
		result("b", "grafana alerting gotchas", 0.30),
		result("c", "pdf export", 0.02),
		result("d", "nothing related", 0.90),
	}
	kw := keywords.Extract("slash command pdf")
	fts := map[string]struct{}{"a": {}, "c": {}}

	for _, weight := range []float64{0, 0.3, 0.65, 1} {
		reranked := Rerank(raw, kw, weight, fts)
		require.Len(t, reranked, len(raw))

		byID := make(map[string]types.Result)
		for _, r := range reranked {
			byID[r.ID] = r
		}
		for _, r := range raw {
			got := byID[r.ID]
			assert.LessOrEqual(t, got.Distance, r.Distance, "weight %v id %s", weight, r.ID)
			assert.GreaterOrEqual(t, got.Distance, 0.0)
			assert.Equal(t, r.Distance, got.OriginalDistance)
		}
		for i := 1; i < len(reranked); i++ {
			assert.LessOrEqual(t, reranked[i-1].Distance, reranked[i].Distance)
		}
	}

	// Input is not modified
	assert.Equal(t, 0.40, raw[0].Distance)
	assert.False(t, raw[0].FTSMatch)
}

func TestRerankFTSBoost(t *testing.T) {
	raw := []types.Result{
		result("cmd", "register the slash command", 0.50),
		result("tiny", "register the slash command", 0.03),
	}
	kw := keywords.Extract("commanding")
	fts := map[string]struct{}{"cmd": {}, "tiny": {}}

	without := Rerank(raw, kw, 0.4, nil)
	with := Rerank(raw, kw, 0.4, fts)

	find := func(rs []types.Result, id string) types.Result {
		for _, r := range rs {
			if r.ID == id {
				return r
			}
		}
		t.Fatalf("id %s missing", id)
		return types.Result{}
	}

	assert.InDelta(t, find(without, "cmd").Distance-FTSBoost, find(with, "cmd").Distance, 1e-12)
	assert.True(t, find(with, "cmd").FTSMatch)
	assert.False(t, find(without, "cmd").FTSMatch)

	// Floored at zero
	assert.Equal(t, 0.0, find(with, "tiny").Distance)
}

func TestRerankKeywordSharingRanksBetter(t *testing.T) {
	raw := []types.Result{
		result("unrelated", "kubernetes pod eviction", 0.4500),
		result("sharing", "prompt caching ttl expiry", 0.4501),
	}
	reranked := Rerank(raw, keywords.Extract("prompt caching"), 0.4, nil)

	require.Len(t, reranked, 2)
	assert.Equal(t, "sharing", reranked[0].ID)
	assert.Less(t, reranked[0].Distance, reranked[1].Distance)
	assert.Equal(t, 1.0, reranked[0].KeywordOverlap)
	assert.Equal(t, 0.0, reranked[1].KeywordOverlap)
}

func TestRerankTieBreakByID(t *testing.T) {
	raw := []types.Result{result("b", "x", 0.5), result("a", "x", 0.5)}
	reranked := Rerank(raw, nil, 0.4, nil)
	assert.Equal(t, "a", reranked[0].ID)
	assert.Equal(t, "b", reranked[1].ID)
}
