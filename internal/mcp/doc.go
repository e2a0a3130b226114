// Package mcp implements the Model Context Protocol (MCP) server for the
// learnings knowledge base.
//
// The server exposes six tools to AI coding assistants:
//   - search_learnings: Hybrid search over global and repository learnings
//   - index_learnings: Index every learning file and prune removed ones
//   - index_file: Index or remove a single learning file
//   - get_stats: Counts by scope, topic and repository
//   - find_duplicates: Consolidation candidates
//   - consolidate_action: Get, delete, archive, rescope or merge learnings
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: search_learnings
//
//	Request:
//	{
//	  "name": "search_learnings",
//	  "arguments": {
//	    "keywords": ["tag:sqlite wal mode", "busy timeout"],
//	    "working_dir": "/home/dev/src/ledger",
//	    "max_results": 5,
//	    "exclude_ids": ["3f2a..."]
//	  }
//	}
//
//	Response:
//	{
//	  "status": "success",
//	  "message": "Found 1 high confidence + 2 possibly relevant learning(s)",
//	  "keywords_searched": ["wal mode", "busy timeout"],
//	  "repos_searched": ["ledger"],
//	  "filters": {"tags": ["sqlite"]},
//	  "count": 3,
//	  "high_confidence": [...],
//	  "possibly_relevant": [...]
//	}
//
// With "peek": true the tiers are replaced by a single "learnings" list.
// Statuses "empty" and "no_results" are regular results.
//
// # Errors
//
// Failures are tool results flagged isError whose body carries
// "status": "error" and an error code. A failed search keeps the full
// search response shape:
//
//	{
//	  "status": "error",
//	  "message": "...: embedding model unavailable",
//	  "keywords_searched": ["wal mode"],
//	  "repos_searched": ["ledger"],
//	  "count": 0,
//	  "error_code": -32002
//	}
//
// Codes:
//
//	-32602  invalid parameters
//	-32603  internal error, including every sub-query failing
//	-32001  store unavailable
//	-32002  embedding model unavailable
//	-32003  indexing already in progress
package mcp
