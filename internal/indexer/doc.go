// Package indexer turns markdown learning files into stored, embedded
// learnings.
//
// # Basic Usage
//
//	idx := indexer.New(store, indexer.Config{
//	    GlobalDir:      "~/.projects/learnings",
//	    RepoSearchPath: "~/src",
//	})
//
//	stats, err := idx.IndexAll(ctx)
//	fmt.Printf("Indexed %d files, pruned %d\n", stats.FilesIndexed, stats.FilesPruned)
//
// # Discovery
//
// Files under GlobalDir are global learnings. Every <repo>/.projects/learnings
// directory found below RepoSearchPath holds learnings scoped to <repo>.
// Dependency and build directories (node_modules, .git, dist, ...) are never
// descended into. Hidden files and anything that is not .md are ignored.
//
// # Parsing
//
// A learning may start with YAML front matter:
//
//	---
//	topic: database
//	tags: [sqlite, migrations]
//	created: 2024-05-01
//	---
//
// Inline **Topic:** and **Tags:** lines are honoured as well. When no topic is
// given it is derived from the tags, then from the content. Keywords are the
// tags followed by the most frequent technical terms in the body.
//
// # Identity
//
// A learning's id is the md5 of its canonical file path, so re-indexing a file
// replaces its previous version and a deleted file can be removed by path.
//
// # Runs
//
// IndexAll holds a non-blocking lock: a second concurrent run fails fast with
// ErrIndexingInProgress. Files are embedded on an ants worker pool. Failures
// are collected in Statistics and do not abort the run. Learnings whose files
// were not discovered are pruned, and each run is recorded in the store.
//
// Watch emits a Change for every created, written, removed or renamed
// learning file. Apply turns a Change into IndexFile or RemoveFile.
package indexer
