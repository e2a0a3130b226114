// Package types provides shared type definitions for the learnings MCP server.
//
// A Learning is a markdown note captured while working in a repository or
// globally. Every learning is stored once, keyed by a stable identifier derived
// from its canonical file path, and carries a Scope that decides where it is
// visible:
//
//	doc := &types.Learning{
//	    ID:      "3f2a...",
//	    Content: "## SQLite WAL\nReaders never block writers...",
//	    Metadata: types.Metadata{
//	        Scope: types.ScopeRepo,
//	        Repo:  "billing-service",
//	        Topic: "database",
//	    },
//	}
//
// # Search Results
//
// Result carries a learning together with its distance to the query. Distances
// are normalized to the [0, 1] range where 0 means identical and 1 means
// maximally dissimilar. Rerank fields (OriginalDistance, KeywordOverlap,
// FTSMatch) are filled in by the searcher.
package types
