package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/phuslu/log"

	"github.com/dshills/learnings-mcp/internal/consolidate"
	"github.com/dshills/learnings-mcp/internal/embedder"
	"github.com/dshills/learnings-mcp/internal/indexer"
	"github.com/dshills/learnings-mcp/internal/searcher"
	"github.com/dshills/learnings-mcp/internal/storage"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeStoreUnavailable   = -32001 // Database cannot be opened or migrated
	ErrorCodeModelUnavailable   = -32002 // Embedding model cannot be reached
	ErrorCodeIndexingInProgress = -32003 // Another indexing operation is already running
)

const maxResultsLimit = 50

const statusError = "error"

// handleSearchLearnings handles the search_learnings tool invocation
func (s *Server) handleSearchLearnings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	maxResults := getIntDefault(args, "max_results", searcher.DefaultMaxResults)
	if maxResults < 1 || maxResults > maxResultsLimit {
		return errorResult(ErrorCodeInvalidParams, fmt.Sprintf("max_results must be between 1 and %d", maxResultsLimit), map[string]interface{}{
			"param": "max_results",
			"value": maxResults,
		}), nil
	}

	workingDir := getStringDefault(args, "working_dir", "")
	if workingDir != "" {
		if err := validateDir(workingDir); err != nil {
			return errorResult(ErrorCodeInvalidParams, "invalid working_dir", map[string]interface{}{
				"param":  "working_dir",
				"reason": err.Error(),
			}), nil
		}
	}

	req := searcher.Request{
		Query:      getStringDefault(args, "query", ""),
		Keywords:   getStringSlice(args, "keywords"),
		MaxResults: maxResults,
		ExcludeIDs: getStringSlice(args, "exclude_ids"),
		Peek:       getBoolDefault(args, "peek", false),
	}
	if v, ok := getFloat(args, "high_threshold"); ok {
		req.HighThreshold = &v
	}

	repos, err := s.app.ScopeRepos(workingDir)
	if err != nil {
		return searchResult(searcher.ErrorResponse(req, err)), nil
	}
	req.ScopeRepos = repos

	return searchResult(s.app.Searcher.Search(ctx, req)), nil
}

// searchResponse is a search Response with the MCP error code of a failure
type searchResponse struct {
	*searcher.Response
	ErrorCode int `json:"error_code,omitempty"`
}

// searchResult encodes resp. An error status is flagged IsError and carries
// its error code in the body.
func searchResult(resp *searcher.Response) *mcp.CallToolResult {
	body := searchResponse{Response: resp}
	if resp.Status == searcher.StatusError {
		body.ErrorCode = errorCode(resp.Err)
	}
	result := mcp.NewToolResultText(formatJSON(body))
	result.IsError = resp.Status == searcher.StatusError
	return result
}

// handleIndexLearnings handles the index_learnings tool invocation
func (s *Server) handleIndexLearnings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.app.Indexer.IndexAll(ctx)
	if err != nil {
		return errorResult(errorCode(err), "indexing failed", map[string]interface{}{
			"error": err.Error(),
		}), nil
	}

	response := map[string]interface{}{
		"status":           "success",
		"run_id":           stats.RunID,
		"files_discovered": stats.FilesDiscovered,
		"files_indexed":    stats.FilesIndexed,
		"files_failed":     stats.FilesFailed,
		"files_pruned":     stats.FilesPruned,
		"global":           stats.Global,
		"repos":            stats.Repos,
		"duration_ms":      stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexFile handles the index_file tool invocation
func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return errorResult(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		}), nil
	}
	if !filepath.IsAbs(path) {
		return errorResult(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		}), nil
	}

	learning, err := s.app.Indexer.IndexFile(ctx, path)
	if err != nil {
		return errorResult(errorCode(err), "indexing failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		}), nil
	}

	if learning == nil {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"status": "removed",
			"path":   path,
		})), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status": "indexed",
		"id":     learning.ID,
		"path":   learning.Metadata.FilePath,
		"scope":  learning.Metadata.Scope,
		"repo":   learning.Metadata.Repo,
		"topic":  learning.Metadata.Topic,
	})), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	workingDir := getStringDefault(args, "working_dir", "")
	if workingDir != "" {
		if err := validateDir(workingDir); err != nil {
			return errorResult(ErrorCodeInvalidParams, "invalid working_dir", map[string]interface{}{
				"param":  "working_dir",
				"reason": err.Error(),
			}), nil
		}
	}
	repos, err := s.app.ScopeRepos(workingDir)
	if err != nil {
		return errorResult(ErrorCodeInternalError, "failed to resolve scope", map[string]interface{}{
			"error": err.Error(),
		}), nil
	}

	stats, err := s.app.Storage.Stats(ctx)
	if err != nil {
		return errorResult(errorCode(err), "failed to get stats", map[string]interface{}{
			"error": err.Error(),
		}), nil
	}

	response := map[string]interface{}{
		"status":         "success",
		"indexing":       s.app.Indexer.Indexing(),
		"embedding":      map[string]interface{}{"provider": s.app.Embedder.Provider(), "model": s.app.Embedder.Model()},
		"repos_in_scope": repos,
		"stats":          stats,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindDuplicates handles the find_duplicates tool invocation
func (s *Server) handleFindDuplicates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	threshold, _ := getFloat(args, "threshold")
	if threshold < 0 || threshold > 1 {
		return errorResult(ErrorCodeInvalidParams, "threshold must be between 0 and 1", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		}), nil
	}
	mode, err := consolidate.ParseMode(getStringDefault(args, "mode", string(consolidate.ModeDuplicates)))
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":  "mode",
			"reason": err.Error(),
		}), nil
	}
	limit := getIntDefault(args, "limit", consolidate.DefaultLimit)

	report, err := s.app.Consolidate(ctx, mode, limit, threshold)
	if err != nil {
		return errorResult(errorCode(err), "consolidation discovery failed", map[string]interface{}{
			"error": err.Error(),
		}), nil
	}
	return mcp.NewToolResultText(formatJSON(report)), nil
}

// handleConsolidateAction handles the consolidate_action tool invocation
func (s *Server) handleConsolidateAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, err.Error(), nil), nil
	}

	action, err := consolidate.ParseAction(getStringDefault(args, "action", ""))
	if err != nil {
		return errorResult(ErrorCodeInvalidParams, "invalid action", map[string]interface{}{
			"param":  "action",
			"reason": err.Error(),
		}), nil
	}
	outputDir := getStringDefault(args, "output_dir", "")
	if outputDir != "" && !filepath.IsAbs(outputDir) {
		return errorResult(ErrorCodeInvalidParams, "invalid output_dir", map[string]interface{}{
			"param":  "output_dir",
			"reason": ErrPathNotAbsolute.Error(),
		}), nil
	}

	result, err := s.app.Actions.Do(ctx, consolidate.ActionRequest{
		Action:    action,
		IDs:       getStringSlice(args, "ids"),
		Scope:     types.Scope(getStringDefault(args, "scope", string(types.ScopeGlobal))),
		Name:      getStringDefault(args, "name", ""),
		OutputDir: outputDir,
		DryRun:    getBoolDefault(args, "dry_run", false),
	})
	if err != nil {
		data := map[string]interface{}{"action": action, "error": err.Error()}
		if result != nil {
			data["partial"] = result
		}
		return errorResult(errorCode(err), string(action)+" failed", data), nil
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// Helper functions

// ToolError is the body of a failed tool call
type ToolError struct {
	Status    string      `json:"status"`
	ErrorCode int         `json:"error_code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

// errorResult reports a failure as a tool result flagged IsError. Errors
// returned from a handler reach the client as a bare internal error, so
// failures travel in the result body instead.
func errorResult(code int, message string, data interface{}) *mcp.CallToolResult {
	result := mcp.NewToolResultText(formatJSON(ToolError{
		Status:    statusError,
		ErrorCode: code,
		Message:   message,
		Data:      data,
	}))
	result.IsError = true
	return result
}

// errorCode maps domain errors onto MCP error codes
func errorCode(err error) int {
	switch {
	case errors.Is(err, storage.ErrStoreUnavailable):
		return ErrorCodeStoreUnavailable
	case errors.Is(err, embedder.ErrModelUnavailable):
		return ErrorCodeModelUnavailable
	case errors.Is(err, indexer.ErrIndexingInProgress):
		return ErrorCodeIndexingInProgress
	case errors.Is(err, indexer.ErrNotLearningFile),
		errors.Is(err, searcher.ErrInvalidThreshold),
		errors.Is(err, consolidate.ErrNoIDs),
		errors.Is(err, consolidate.ErrNotFound),
		errors.Is(err, consolidate.ErrAlreadyScoped),
		errors.Is(err, consolidate.ErrUnsupportedScope),
		errors.Is(err, consolidate.ErrMergeTooFew),
		errors.Is(err, consolidate.ErrInvalidName):
		return ErrorCodeInvalidParams
	default:
		return ErrorCodeInternalError
	}
}

// arguments returns the request arguments. Tools without parameters may be
// called with no arguments at all.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, ErrInvalidArguments
	}
	return args, nil
}

// validateDir checks that path is an absolute, existing directory
func validateDir(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode tool result")
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloat extracts an optional number parameter
func getFloat(args map[string]interface{}, key string) (float64, bool) {
	switch val := args[key].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	}
	return 0, false
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-strings
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrInvalidArguments = errors.New("arguments must be an object")
	ErrPathNotAbsolute  = errors.New("path must be absolute")
	ErrPathNotFound     = errors.New("path does not exist")
	ErrPathNotReadable  = errors.New("path is not readable")
	ErrNotDirectory     = errors.New("path is not a directory")
)
