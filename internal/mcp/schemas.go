package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchContentTool returns the tool definition for search_content
func searchContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_content",
		Description: "Search file contents under one or more folders for a literal string or regular expression",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Absolute paths of the folders to search",
					"items": map[string]interface{}{
						"type": "string",
					},
					"minItems": 1,
				},
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Text or regular expression (RE2 syntax) to look for",
				},
				"is_regexp": map[string]interface{}{
					"type":        "boolean",
					"description": "Treat pattern as a regular expression",
					"default":     false,
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "Match case exactly",
					"default":     false,
				},
				"word_match": map[string]interface{}{
					"type":        "boolean",
					"description": "Only match whole words",
					"default":     false,
				},
				"encoding": map[string]interface{}{
					"type":        "string",
					"description": "File encoding label (e.g. windows-1252, utf-16le); default UTF-8",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of matching files to return (1-10000)",
					"default":     DefaultMaxResults,
					"minimum":     1,
					"maximum":     MaxMaxResults,
				},
				"include": map[string]interface{}{
					"type":        "array",
					"description": "Only search files matching these glob patterns (e.g., '**/*.go')",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Skip files and folders matching these glob patterns (e.g., '**/vendor/**')",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"include_hidden": map[string]interface{}{
					"type":        "boolean",
					"description": "Also search hidden files and folders",
					"default":     false,
				},
			},
			Required: []string{"paths", "pattern"},
		},
	}
}

// searchHistoryTool returns the tool definition for search_history
func searchHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_history",
		Description: "List previous searches, or show one search with its matched files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of a single run to show in detail",
				},
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Only list runs whose pattern contains this text",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of runs to list (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report server configuration, search activity and history statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
