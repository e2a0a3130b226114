package indexer

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/learnings-mcp/internal/workspace"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// skipDirs are never descended into while searching for repositories
var skipDirs = map[string]struct{}{
	"node_modules": {}, ".git": {}, ".venv": {}, "venv": {}, ".cache": {},
	"build": {}, "dist": {}, "__pycache__": {}, ".next": {}, ".nuxt": {},
}

// File is a discovered learning file
type File struct {
	Path  string      `json:"path"`
	Scope types.Scope `json:"scope"`
	Repo  string      `json:"repo,omitempty"`
}

// Discovery is the result of scanning the configured locations
type Discovery struct {
	Files []File
	// Dirs are every directory holding learnings, for watching
	Dirs []string
}

// Discover finds markdown learnings under globalDir (global scope) and in
// every <repo>/.projects/learnings below repoSearchPath (repo scope). Paths
// are canonical and each file appears once. Missing roots yield no files.
func Discover(globalDir, repoSearchPath string) (*Discovery, error) {
	globalDir = workspace.Canonical(globalDir)
	d := &Discovery{}
	seen := make(map[string]struct{})

	add := func(path string, scope types.Scope, repo string) {
		path = workspace.Canonical(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		d.Files = append(d.Files, File{Path: path, Scope: scope, Repo: repo})
	}

	if isDir(globalDir) {
		d.collect(globalDir, func(path string) { add(path, types.ScopeGlobal, "") })
	}

	root := workspace.Canonical(repoSearchPath)
	if isDir(root) {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if entry != nil && entry.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !entry.IsDir() {
				return nil
			}
			if _, skip := skipDirs[entry.Name()]; skip {
				return filepath.SkipDir
			}
			if workspace.Within(path, globalDir) {
				return filepath.SkipDir
			}
			if entry.Name() == "learnings" && filepath.Base(filepath.Dir(path)) == ".projects" {
				repo := filepath.Base(filepath.Dir(filepath.Dir(path)))
				d.collect(path, func(file string) { add(file, types.ScopeRepo, repo) })
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Path < d.Files[j].Path })
	sort.Strings(d.Dirs)
	return d, nil
}

// collect walks one learnings directory and reports every markdown file
func (d *Discovery) collect(dir string, fn func(path string)) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if _, skip := skipDirs[entry.Name()]; skip {
				return filepath.SkipDir
			}
			d.Dirs = append(d.Dirs, path)
			return nil
		}
		if IsLearningFile(path) {
			fn(path)
		}
		return nil
	})
}

// IsLearningFile reports whether path names a visible markdown file
func IsLearningFile(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".md") && !strings.HasPrefix(base, ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
