package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/learnings-mcp/internal/workspace"
	"github.com/dshills/learnings-mcp/pkg/types"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// layout is a global learnings dir and a search root holding two repos
type layout struct {
	root, global, src string
}

func newLayout(t *testing.T) layout {
	t.Helper()
	root := workspace.Canonical(t.TempDir())
	l := layout{root: root, global: filepath.Join(root, "global"), src: filepath.Join(root, "src")}
	require.NoError(t, os.MkdirAll(l.global, 0o755))
	require.NoError(t, os.MkdirAll(l.src, 0o755))
	return l
}

func (l layout) repoFile(repo, name string) string {
	return filepath.Join(l.src, repo, workspace.LearningsDir, name)
}

func TestDiscover(t *testing.T) {
	l := newLayout(t)
	globalNote := writeFile(t, filepath.Join(l.global, "go", "errors.md"), "# Errors")
	billing := writeFile(t, l.repoFile("billing", "stripe.md"), "# Stripe")
	nested := writeFile(t, filepath.Join(l.src, "group", "ledger", workspace.LearningsDir, "sqlite.md"), "# SQLite")
	writeFile(t, l.repoFile("billing", ".hidden.md"), "hidden")
	writeFile(t, l.repoFile("billing", "notes.txt"), "not markdown")
	writeFile(t, filepath.Join(l.src, "app", "node_modules", "dep", workspace.LearningsDir, "dep.md"), "# Dep")
	writeFile(t, filepath.Join(l.src, "billing", "README.md"), "outside learnings")

	d, err := Discover(l.global, l.src)
	require.NoError(t, err)

	assert.Equal(t, []File{
		{Path: globalNote, Scope: types.ScopeGlobal},
		{Path: billing, Scope: types.ScopeRepo, Repo: "billing"},
		{Path: nested, Scope: types.ScopeRepo, Repo: "ledger"},
	}, d.Files)
	assert.Contains(t, d.Dirs, filepath.Join(l.global, "go"))
	assert.Contains(t, d.Dirs, filepath.Dir(billing))
}

func TestDiscoverGlobalInsideSearchPath(t *testing.T) {
	root := workspace.Canonical(t.TempDir())
	global := filepath.Join(root, ".projects", "learnings")
	note := writeFile(t, filepath.Join(global, "note.md"), "# Note")

	d, err := Discover(global, root)
	require.NoError(t, err)

	require.Len(t, d.Files, 1, "global learnings are not also indexed as a repo")
	assert.Equal(t, File{Path: note, Scope: types.ScopeGlobal}, d.Files[0])
}

func TestDiscoverSymlinkDedup(t *testing.T) {
	l := newLayout(t)
	note := writeFile(t, l.repoFile("billing", "note.md"), "# Note")
	require.NoError(t, os.Symlink(filepath.Join(l.src, "billing"), filepath.Join(l.src, "billing-link")))

	d, err := Discover(l.global, l.src)
	require.NoError(t, err)

	require.Len(t, d.Files, 1)
	assert.Equal(t, note, d.Files[0].Path)
}

func TestDiscoverMissingRoots(t *testing.T) {
	root := t.TempDir()
	d, err := Discover(filepath.Join(root, "nope"), filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, d.Files)
}

func TestIsLearningFile(t *testing.T) {
	assert.True(t, IsLearningFile("/a/b/note.md"))
	assert.True(t, IsLearningFile("/a/b/NOTE.MD"))
	assert.False(t, IsLearningFile("/a/b/.draft.md"))
	assert.False(t, IsLearningFile("/a/b/note.txt"))
	assert.False(t, IsLearningFile("/a/b/md"))
}
