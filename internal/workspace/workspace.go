// Package workspace resolves which repository knowledge bases are in scope
// for a working directory.
package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/learnings-mcp/pkg/types"
)

// LearningsDir is the per-repository directory holding learning files,
// relative to the repository root
var LearningsDir = filepath.Join(".projects", "learnings")

// worktreeMarker separates the main repository from the worktree name in a
// worktree's gitdir pointer
var worktreeMarker = string(filepath.Separator) + filepath.Join(".git", "worktrees") + string(filepath.Separator)

// DetectHierarchy returns the names of the repositories whose learnings are
// visible from cwd, innermost first. The main checkout of a git worktree is
// listed first so a worktree sees the same learnings as its main repository.
// The walk stops at home, which never contributes a repository.
func DetectHierarchy(cwd, home string) []string {
	var (
		repos []string
		seen  = make(map[string]struct{})
	)
	add := func(dir string) {
		name := filepath.Base(dir)
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		repos = append(repos, name)
	}

	home = Canonical(home)
	current := Canonical(cwd)

	if root := ResolveRepoRoot(current); root != home && hasLearnings(root) {
		add(root)
	}

	for {
		if current == home {
			break
		}
		if hasLearnings(current) {
			add(current)
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return repos
}

// ResolveRepoRoot returns the repository root containing dir. Inside a git
// worktree it returns the main repository's root. Outside any repository
// dir is returned unchanged.
func ResolveRepoRoot(dir string) string {
	check := Canonical(dir)
	for {
		gitPath := filepath.Join(check, ".git")
		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return check
			}
			if gitdir, ok := readGitdir(gitPath); ok {
				if i := strings.Index(gitdir, worktreeMarker); i != -1 {
					return gitdir[:i]
				}
			}
			return check
		}

		parent := filepath.Dir(check)
		if parent == check {
			return dir
		}
		check = parent
	}
}

// RepoFromPath derives the scope of a learning file. Files under globalDir
// are global; otherwise the repository is the directory containing
// .projects/learnings.
func RepoFromPath(path, globalDir string) (types.Scope, string) {
	path = Canonical(path)
	if Within(path, Canonical(globalDir)) {
		return types.ScopeGlobal, ""
	}

	marker := string(filepath.Separator) + LearningsDir + string(filepath.Separator)
	if i := strings.LastIndex(path, marker); i > 0 {
		return types.ScopeRepo, filepath.Base(path[:i])
	}
	return types.ScopeRepo, "unknown"
}

func hasLearnings(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, LearningsDir))
	return err == nil && info.IsDir()
}

// readGitdir reads the "gitdir: <path>" pointer of a worktree .git file
func readGitdir(gitFile string) (string, bool) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return "", false
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", false
	}
	return strings.TrimPrefix(line, "gitdir: "), true
}

// Canonical returns the absolute, symlink-resolved form of path. For a path
// that no longer exists the parent directory is resolved instead, so a
// deleted file keeps the canonical path it had.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if parent, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(parent, filepath.Base(abs))
	}
	return abs
}

// Within reports whether path equals dir or lies beneath it
func Within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
