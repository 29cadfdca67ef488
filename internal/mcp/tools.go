package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/searcher"
	"github.com/dshills/contentsearch/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeRunNotFound     = -32001 // No search run with the given ID
	ErrorCodeHistoryDisabled = -32002 // Server runs without a history database
	ErrorCodeSearchFailed    = -32003 // The search started but failed
	ErrorCodeEmptyPattern    = -32004 // Pattern parameter is empty
)

const (
	// DefaultMaxResults caps matching files when max_results is omitted
	DefaultMaxResults = 100
	// MaxMaxResults is the largest accepted max_results
	MaxMaxResults = 10000
)

// handleSearchContent handles the search_content tool invocation
func (s *Server) handleSearchContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	paths, err := getStringSlice(args, "paths")
	if err != nil || len(paths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing, empty or not a list of strings",
		})
	}
	for _, p := range paths {
		if err := validatePath(p); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "paths",
				"path":   p,
				"reason": err.Error(),
			})
		}
	}

	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return nil, newMCPError(ErrorCodeEmptyPattern, "pattern parameter is required and cannot be empty", map[string]interface{}{
			"param":  "pattern",
			"reason": "missing or empty",
		})
	}

	// Parse optional parameters
	maxResults := getIntDefault(args, "max_results", DefaultMaxResults)
	if maxResults < 1 || maxResults > MaxMaxResults {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("max_results must be between 1 and %d", MaxMaxResults), map[string]interface{}{
			"param": "max_results",
			"value": maxResults,
		})
	}

	include, err := getStringSlice(args, "include")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "include must be a list of strings", map[string]interface{}{"param": "include"})
	}
	exclude, err := getStringSlice(args, "exclude")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "exclude must be a list of strings", map[string]interface{}{"param": "exclude"})
	}

	req := searcher.Request{
		Search: config.Search{
			Roots:         paths,
			Pattern:       pattern,
			IsRegExp:      getBoolDefault(args, "is_regexp", false),
			CaseSensitive: getBoolDefault(args, "case_sensitive", false),
			WordMatch:     getBoolDefault(args, "word_match", false),
			Encoding:      getStringDefault(args, "encoding", ""),
			MaxResults:    maxResults,
		},
	}
	if include != nil || exclude != nil || args["include_hidden"] != nil {
		walker := s.searcher.WalkerConfig()
		if include != nil {
			walker.Include = include
		}
		if exclude != nil {
			walker.Exclude = exclude
		}
		walker.IncludeHidden = getBoolDefault(args, "include_hidden", walker.IncludeHidden)
		req.Walker = &walker
	}

	resp, err := s.searcher.Search(ctx, req)
	if errors.Is(err, searcher.ErrInvalidRequest) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err != nil && resp == nil {
		return nil, newMCPError(ErrorCodeInternalError, "search could not start", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeSearchFailed, "search failed", map[string]interface{}{
			"error":          err.Error(),
			"run_id":         resp.RunID,
			"files_returned": resp.NumFiles,
		})
	}

	matches := make([]map[string]interface{}, 0, len(resp.Matches))
	for _, fm := range resp.Matches {
		lines := make([]map[string]interface{}, 0, len(fm.LineMatches))
		for _, lm := range fm.LineMatches {
			ranges := make([][2]int, 0, len(lm.Ranges))
			for _, r := range lm.Ranges {
				ranges = append(ranges, [2]int{r.Start, r.End})
			}
			lines = append(lines, map[string]interface{}{
				"line":   lm.LineNumber,
				"text":   lm.Text,
				"ranges": ranges,
			})
		}
		matches = append(matches, map[string]interface{}{
			"path":  fm.Path,
			"lines": lines,
		})
	}

	// Format response
	response := map[string]interface{}{
		"run_id":      resp.RunID,
		"num_files":   resp.NumFiles,
		"num_matches": resp.NumMatches,
		"limit_hit":   resp.Completion.LimitHit,
		"canceled":    resp.Completion.Canceled,
		"duration_ms": resp.Duration.Milliseconds(),
		"statistics": map[string]interface{}{
			"files_scanned":  resp.Completion.Stats.FilesScanned,
			"files_skipped":  resp.Completion.Stats.FilesSkipped,
			"dirs_visited":   resp.Completion.Stats.DirsVisited,
			"bytes_searched": resp.Completion.Bytes.Total,
			"walk_errors":    resp.Completion.Stats.Errors,
		},
		"matches": matches,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchHistory handles the search_history tool invocation
func (s *Server) handleSearchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		// every parameter is optional
		args = map[string]interface{}{}
	}

	history, err := s.searcher.History()
	if err != nil {
		return nil, newMCPError(ErrorCodeHistoryDisabled, "search history is disabled", nil)
	}

	if runID := getStringDefault(args, "run_id", ""); runID != "" {
		run, err := history.GetRun(ctx, runID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeRunNotFound, "run not found", map[string]interface{}{
				"run_id": runID,
			})
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response := map[string]interface{}{
			"run": runSummary(run),
		}
		files := make([]map[string]interface{}, 0, len(run.Files))
		for _, f := range run.Files {
			files = append(files, map[string]interface{}{"path": f.Path, "matches": f.Matches})
		}
		response["files"] = files
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	limit := getIntDefault(args, "limit", storage.DefaultListLimit)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	runs, err := history.ListRuns(ctx, storage.ListFilter{
		Limit:   limit,
		Pattern: getStringDefault(args, "pattern", ""),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summaries := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary(run))
	}

	response := map[string]interface{}{
		"count": len(summaries),
		"runs":  summaries,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.searcher.Status()

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":       ServerName,
			"version":    ServerVersion,
			"build_mode": storage.BuildMode,
		},
		"searches": map[string]interface{}{
			"active":      status.ActiveSearches,
			"total":       status.TotalSearches,
			"failed":      status.FailedSearches,
			"last_run_id": status.LastRunID,
		},
		"workers": map[string]interface{}{
			"mode":  status.WorkerMode,
			"count": status.Workers,
		},
	}
	if !status.LastFinishedAt.IsZero() {
		response["searches"].(map[string]interface{})["last_finished_at"] = status.LastFinishedAt.Format(time.RFC3339)
	}

	historyInfo := map[string]interface{}{"enabled": status.HistoryEnabled}
	if history, err := s.searcher.History(); err == nil {
		stats, err := history.Stats(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get history statistics", map[string]interface{}{
				"error": err.Error(),
			})
		}
		historyInfo["total_runs"] = stats.TotalRuns
		historyInfo["failed_runs"] = stats.FailedRuns
		historyInfo["canceled_runs"] = stats.CanceledRuns
		historyInfo["files_recorded"] = stats.FilesRecorded
		historyInfo["size_mb"] = fmt.Sprintf("%.2f", float64(stats.SizeBytes)/(1024*1024))
		historyInfo["schema_version"] = stats.SchemaVersion
	}
	response["history"] = historyInfo

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// runSummary flattens a run for JSON output
func runSummary(run *storage.Run) map[string]interface{} {
	summary := map[string]interface{}{
		"id":             run.ID,
		"pattern":        run.Pattern,
		"is_regexp":      run.IsRegExp,
		"case_sensitive": run.CaseSensitive,
		"word_match":     run.WordMatch,
		"roots":          run.Roots,
		"started_at":     run.StartedAt.Format(time.RFC3339),
		"duration_ms":    run.Duration().Milliseconds(),
		"files_matched":  run.FilesMatched,
		"line_matches":   run.LineMatches,
		"files_scanned":  run.FilesScanned,
		"limit_hit":      run.LimitHit,
		"canceled":       run.Canceled,
	}
	if run.Failed() {
		summary["error"] = run.Error
	}
	return summary
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a search root is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
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

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a list of strings; a missing key yields nil
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected string, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected list, got %T", key, raw)
	}
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
