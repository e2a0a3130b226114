package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchLearningsTool returns the tool definition for search_learnings
func searchLearningsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_learnings",
		Description: "Search past learnings relevant to the current task. Each keyword is searched separately and results are merged, reranked and split into high-confidence and possibly-relevant tiers.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query, used as a single keyword when keywords is empty",
				},
				"keywords": map[string]interface{}{
					"type":        "array",
					"description": "Distinct concepts to search for in parallel. The first keyword may carry tag:<name> and category:<topic> filters.",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"working_dir": map[string]interface{}{
					"type":        "string",
					"description": "Absolute directory whose repository learnings are in scope (default: server working directory)",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of learnings to return (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
				"peek": map[string]interface{}{
					"type":        "boolean",
					"description": "Return a single list, high-confidence learnings first",
					"default":     false,
				},
				"exclude_ids": map[string]interface{}{
					"type":        "array",
					"description": "Learning ids already seen in this session",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"high_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Override the high-confidence distance threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
		},
	}
}

// indexLearningsTool returns the tool definition for index_learnings
func indexLearningsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_learnings",
		Description: "Index every global and repository learning file, removing learnings whose files are gone",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexFileTool returns the tool definition for index_file
func indexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_file",
		Description: "Index or re-index a single learning file. A path that no longer exists is removed from the index.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a markdown learning file",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report learning counts by scope, topic and repository along with the last indexing run and the repositories in scope",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"working_dir": map[string]interface{}{
					"type":        "string",
					"description": "Absolute directory whose repositories are reported as in scope (default: server working directory)",
				},
			},
		},
	}
}

// findDuplicatesTool returns the tool definition for find_duplicates
func findDuplicatesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_duplicates",
		Description: "Find consolidation candidates: clusters of near-identical learnings, outdated learnings and repository learnings worth promoting to global scope",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Maximum distance between duplicates (0.0-1.0, default from configuration)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Which candidates to report",
					"enum":        []string{"all", "duplicates", "outdated", "scope"},
					"default":     "duplicates",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum items per category",
					"default":     20,
					"minimum":     1,
				},
			},
		},
	}
}

// consolidateActionTool returns the tool definition for consolidate_action
func consolidateActionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "consolidate_action",
		Description: "Act on consolidation candidates. Every file removed from the learning directories is first backed up under the archive directory.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"action": map[string]interface{}{
					"type":        "string",
					"description": "get returns full learnings; delete, archive and merge remove the sources; rescope moves a repository learning to global",
					"enum":        []string{"get", "delete", "archive", "rescope", "merge"},
				},
				"ids": map[string]interface{}{
					"type":        "array",
					"description": "Learning ids to act on (rescope uses the first)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"scope": map[string]interface{}{
					"type":        "string",
					"description": "Target scope for rescope",
					"enum":        []string{"global"},
					"default":     "global",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Kebab-case name of the merged learning",
				},
				"output_dir": map[string]interface{}{
					"type":        "string",
					"description": "Absolute directory for the merged learning (default chosen from the sources' scope)",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Report what a merge would do without changing anything",
					"default":     false,
				},
			},
			Required: []string{"action", "ids"},
		},
	}
}
