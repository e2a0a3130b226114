package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/learnings-mcp/internal/app"
	"github.com/dshills/learnings-mcp/internal/config"
	"github.com/dshills/learnings-mcp/internal/embedder"
	"github.com/dshills/learnings-mcp/internal/indexer"
	"github.com/dshills/learnings-mcp/internal/storage"
)

const walLearning = "# SQLite WAL\n\nSQLite WAL mode lets readers continue while one writer appends to the log.\n"

func setupServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults(root)
	cfg.SQLite.DBPath = filepath.Join(root, "db", "learnings.db")
	cfg.Learnings.GlobalDir = filepath.Join(root, "global")
	cfg.Learnings.RepoSearchPath = filepath.Join(root, "src")
	cfg.Embedding.Provider = embedder.ProviderLocal
	require.NoError(t, os.MkdirAll(cfg.Learnings.GlobalDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Learnings.RepoSearchPath, 0o755))

	a, err := app.New(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return NewServer(a), cfg.Learnings.GlobalDir
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "result is text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

// requireToolError asserts res is a failed tool result with code and returns
// its body
func requireToolError(t *testing.T, res *mcp.CallToolResult, err error, code int) map[string]interface{} {
	t.Helper()
	require.NoError(t, err, "failures are reported in the result")
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	body := resultJSON(t, res)
	assert.Equal(t, "error", body["status"])
	assert.EqualValues(t, code, body["error_code"])
	return body
}

func writeLearning(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexAndSearch(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()
	writeLearning(t, global, "wal.md", walLearning)

	res, err := s.handleIndexLearnings(ctx, callRequest("index_learnings", nil))
	require.NoError(t, err)
	indexed := resultJSON(t, res)
	assert.Equal(t, "success", indexed["status"])
	assert.EqualValues(t, 1, indexed["files_indexed"])

	res, err = s.handleSearchLearnings(ctx, callRequest("search_learnings", map[string]interface{}{
		"keywords":    []interface{}{"sqlite wal mode"},
		"working_dir": global,
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "success", out["status"])
	assert.EqualValues(t, 1, out["count"])
	assert.Contains(t, out, "high_confidence")
	assert.Contains(t, out, "possibly_relevant")
	assert.NotContains(t, out, "learnings")

	res, err = s.handleSearchLearnings(ctx, callRequest("search_learnings", map[string]interface{}{
		"query": "sqlite wal mode",
		"peek":  true,
	}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, "success", out["status"])
	assert.Len(t, out["learnings"], 1)
	assert.NotContains(t, out, "high_confidence")
}

func TestSearchLearningsEmpty(t *testing.T) {
	s, _ := setupServer(t)

	res, err := s.handleSearchLearnings(context.Background(), callRequest("search_learnings", map[string]interface{}{
		"keywords": []interface{}{"  "},
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "empty", out["status"])
	assert.Equal(t, []interface{}{}, out["repos_searched"])
}

func TestSearchLearningsInvalidParams(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"max_results too large", map[string]interface{}{"query": "x", "max_results": float64(51)}},
		{"max_results zero", map[string]interface{}{"query": "x", "max_results": float64(0)}},
		{"relative working_dir", map[string]interface{}{"query": "x", "working_dir": "src"}},
		{"missing working_dir", map[string]interface{}{"query": "x", "working_dir": filepath.Join(global, "nope")}},
		{"threshold out of range", map[string]interface{}{"query": "x", "high_threshold": 1.5}},
		{"threshold overlaps possible tier", map[string]interface{}{"query": "x", "high_threshold": 0.7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleSearchLearnings(ctx, callRequest("search_learnings", tt.args))
			requireToolError(t, res, err, ErrorCodeInvalidParams)
		})
	}
}

func TestIndexFile(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()
	path := writeLearning(t, global, "wal.md", walLearning)

	res, err := s.handleIndexFile(ctx, callRequest("index_file", map[string]interface{}{"path": path}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "indexed", out["status"])
	assert.Equal(t, indexer.DocumentID(path), out["id"])
	assert.Equal(t, "global", out["scope"])

	require.NoError(t, os.Remove(path))
	res, err = s.handleIndexFile(ctx, callRequest("index_file", map[string]interface{}{"path": path}))
	require.NoError(t, err)
	assert.Equal(t, "removed", resultJSON(t, res)["status"])
}

func TestIndexFileInvalidParams(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()
	txt := writeLearning(t, global, "notes.txt", "plain")

	for _, args := range []map[string]interface{}{
		{},
		{"path": ""},
		{"path": "relative/note.md"},
		{"path": txt},
	} {
		res, err := s.handleIndexFile(ctx, callRequest("index_file", args))
		requireToolError(t, res, err, ErrorCodeInvalidParams)
	}
}

func TestGetStats(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()
	path := writeLearning(t, global, "wal.md", walLearning)
	_, err := s.handleIndexFile(ctx, callRequest("index_file", map[string]interface{}{"path": path}))
	require.NoError(t, err)

	repo := filepath.Join(filepath.Dir(global), "src", "ledger")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".projects", "learnings"), 0o755))

	res, err := s.handleGetStats(ctx, callRequest("get_stats", map[string]interface{}{"working_dir": repo}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, false, out["indexing"])
	assert.Contains(t, out["repos_in_scope"], "ledger")
	stats, ok := out["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, stats["total"])

	res, err = s.handleGetStats(ctx, callRequest("get_stats", map[string]interface{}{"working_dir": "relative"}))
	requireToolError(t, res, err, ErrorCodeInvalidParams)
}

func TestFindDuplicates(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		writeLearning(t, global, fmt.Sprintf("wal-%d.md", i), walLearning)
	}
	_, err := s.handleIndexLearnings(ctx, callRequest("index_learnings", nil))
	require.NoError(t, err)

	res, err := s.handleFindDuplicates(ctx, callRequest("find_duplicates", nil))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "success", out["status"])
	assert.Len(t, out["duplicates"], 1)
	assert.Empty(t, out["outdated"], "only duplicates are reported by default")

	res, err = s.handleFindDuplicates(ctx, callRequest("find_duplicates", map[string]interface{}{"mode": "everything"}))
	requireToolError(t, res, err, ErrorCodeInvalidParams)

	res, err = s.handleFindDuplicates(ctx, callRequest("find_duplicates", map[string]interface{}{"threshold": 2.0}))
	requireToolError(t, res, err, ErrorCodeInvalidParams)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeStoreUnavailable, errorCode(fmt.Errorf("open: %w", storage.ErrStoreUnavailable)))
	assert.Equal(t, ErrorCodeModelUnavailable, errorCode(fmt.Errorf("embed: %w", embedder.ErrModelUnavailable)))
	assert.Equal(t, ErrorCodeIndexingInProgress, errorCode(indexer.ErrIndexingInProgress))
	assert.Equal(t, ErrorCodeInternalError, errorCode(errors.New("boom")))
}

func TestArgumentsRejectsNonObject(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = []interface{}{"not", "an", "object"}

	_, err := arguments(req)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	s, _ := setupServer(t)
	res, err := s.handleSearchLearnings(context.Background(), req)
	requireToolError(t, res, err, ErrorCodeInvalidParams)
}

func TestConsolidateAction(t *testing.T) {
	s, global := setupServer(t)
	ctx := context.Background()
	first := writeLearning(t, global, "wal.md", walLearning)
	second := writeLearning(t, global, "wal-again.md", walLearning)
	_, err := s.handleIndexLearnings(ctx, callRequest("index_learnings", nil))
	require.NoError(t, err)
	ids := []interface{}{indexer.DocumentID(first), indexer.DocumentID(second)}

	res, err := s.handleConsolidateAction(ctx, callRequest("consolidate_action", map[string]interface{}{
		"action": "get",
		"ids":    ids,
	}))
	require.NoError(t, err)
	assert.Len(t, resultJSON(t, res)["documents"], 2)

	res, err = s.handleConsolidateAction(ctx, callRequest("consolidate_action", map[string]interface{}{
		"action":  "merge",
		"ids":     ids,
		"name":    "sqlite-wal",
		"dry_run": true,
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "dry_run", out["status"])
	assert.FileExists(t, first)

	res, err = s.handleConsolidateAction(ctx, callRequest("consolidate_action", map[string]interface{}{
		"action": "archive",
		"ids":    ids[:1],
	}))
	require.NoError(t, err)
	assert.Len(t, resultJSON(t, res)["archived"], 1)
	assert.NoFileExists(t, first)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"unknown action", map[string]interface{}{"action": "promote", "ids": ids}},
		{"no ids", map[string]interface{}{"action": "get"}},
		{"unknown id", map[string]interface{}{"action": "delete", "ids": []interface{}{"missing"}}},
		{"already global", map[string]interface{}{"action": "rescope", "ids": ids[1:]}},
		{"relative output_dir", map[string]interface{}{"action": "merge", "ids": ids, "name": "x", "output_dir": "out"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleConsolidateAction(ctx, callRequest("consolidate_action", tt.args))
			requireToolError(t, res, err, ErrorCodeInvalidParams)
		})
	}
}

// wireResponse is the part of a JSON-RPC response the wire tests inspect
type wireResponse struct {
	Result *struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code int `json:"code"`
	} `json:"error"`
}

func TestSearchModelUnavailableOverWire(t *testing.T) {
	root := t.TempDir()
	cfg := config.Defaults(root)
	cfg.SQLite.DBPath = filepath.Join(root, "db", "learnings.db")
	cfg.Learnings.GlobalDir = filepath.Join(root, "global")
	cfg.Learnings.RepoSearchPath = filepath.Join(root, "src")
	cfg.Embedding.Provider = embedder.ProviderOllama
	cfg.Embedding.BaseURL = "http://127.0.0.1:1"
	repo := filepath.Join(root, "src", "ledger")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".projects", "learnings"), 0o755))

	a, err := app.New(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	s := NewServer(a)

	msg, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name": "search_learnings",
			"arguments": map[string]interface{}{
				"keywords":    []string{"wal mode", "busy timeout"},
				"working_dir": repo,
			},
		},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.mcp.HandleMessage(context.Background(), msg))
	require.NoError(t, err)
	var resp wireResponse
	require.NoError(t, json.Unmarshal(raw, &resp))

	require.Nil(t, resp.Error, "failures are not JSON-RPC errors: %s", raw)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &body))
	assert.Equal(t, "error", body["status"])
	assert.EqualValues(t, ErrorCodeModelUnavailable, body["error_code"])
	assert.Equal(t, []interface{}{"wal mode", "busy timeout"}, body["keywords_searched"])
	assert.Contains(t, body["repos_searched"], "ledger")
	assert.Contains(t, body["message"], "embedding model unavailable")
}
