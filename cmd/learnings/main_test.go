package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/learnings-mcp/internal/config"
	"github.com/dshills/learnings-mcp/internal/indexer"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "Build Mode: ")
}

func TestIndexAndSearchCommands(t *testing.T) {
	root := t.TempDir()
	global := filepath.Join(root, "global")
	require.NoError(t, os.MkdirAll(global, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(global, "wal.md"),
		[]byte("# SQLite WAL\n\nSQLite WAL mode lets readers continue while one writer appends.\n"), 0o644))

	t.Setenv(config.EnvPluginRoot, "")
	t.Setenv(config.EnvDBPath, filepath.Join(root, "learnings.db"))
	t.Setenv(config.EnvGlobalDir, global)
	t.Setenv(config.EnvRepoSearchPath, filepath.Join(root, "src"))
	t.Setenv(config.EnvEmbeddingProvider, "local")

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "index")), &stats))
	assert.EqualValues(t, 1, stats["files_indexed"])

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "search", "--working-dir", root, "sqlite wal mode")), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.EqualValues(t, 1, resp["count"])
}

func TestSearchCommandStoreUnavailable(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	t.Setenv(config.EnvPluginRoot, "")
	t.Setenv(config.EnvDBPath, filepath.Join(blocker, "learnings.db"))
	t.Setenv(config.EnvEmbeddingProvider, "local")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"search", "sqlite wal mode"})
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.Error(t, rootCmd.Execute())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "an error response is still printed")
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, []interface{}{"sqlite wal mode"}, resp["keywords_searched"])
	assert.Equal(t, []interface{}{}, resp["repos_searched"])
	assert.Contains(t, resp["message"], "store unavailable")
}

func TestConsolidateActionCommands(t *testing.T) {
	root := t.TempDir()
	global := filepath.Join(root, "global")
	require.NoError(t, os.MkdirAll(global, 0o755))
	note := []byte("# SQLite WAL\n\nSQLite WAL mode lets readers continue while one writer appends.\n")
	first := filepath.Join(global, "wal.md")
	second := filepath.Join(global, "wal-copy.md")
	require.NoError(t, os.WriteFile(first, note, 0o644))
	require.NoError(t, os.WriteFile(second, note, 0o644))

	t.Setenv(config.EnvPluginRoot, "")
	t.Setenv(config.EnvDBPath, filepath.Join(root, "learnings.db"))
	t.Setenv(config.EnvGlobalDir, global)
	t.Setenv(config.EnvRepoSearchPath, filepath.Join(root, "src"))
	t.Setenv(config.EnvArchiveDir, filepath.Join(root, "archive"))
	t.Setenv(config.EnvEmbeddingProvider, "local")
	execute(t, "index")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "consolidate", "get", indexer.DocumentID(first))), &got))
	assert.Len(t, got["documents"], 1)

	var merged map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "consolidate", "merge",
		indexer.DocumentID(first), indexer.DocumentID(second), "--name", "sqlite-wal")), &merged))
	assert.Equal(t, "success", merged["status"])
	assert.NoFileExists(t, first)
	assert.NoFileExists(t, second)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "stats")), &stats))
	assert.EqualValues(t, 1, stats["total"])
}

func TestEmbedCommand(t *testing.T) {
	t.Setenv(config.EnvPluginRoot, "")
	t.Setenv(config.EnvEmbeddingProvider, "local")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "embed", "sqlite", "wal")), &out))
	assert.Equal(t, "local", out["provider"])
	assert.Len(t, out["preview"], 5)
}
