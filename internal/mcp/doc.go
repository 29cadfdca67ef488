// Package mcp implements the Model Context Protocol (MCP) server for contentsearch.
//
// The MCP server exposes three tools to AI coding assistants:
//   - search_content: Search file contents under one or more folders
//   - search_history: Inspect previous search runs
//   - get_status: Report worker configuration and history statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	contentsearch serve
//
// It listens on stdin for MCP protocol messages and writes responses to stdout.
// Logs go to stderr.
//
// # Tool: search_content
//
//	Request:
//	{
//	  "name": "search_content",
//	  "arguments": {
//	    "paths": ["/path/to/project"],
//	    "pattern": "TODO\\(\\w+\\)",
//	    "is_regexp": true,
//	    "include": ["**/*.go"],
//	    "max_results": 50
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "6f1c...",
//	  "num_files": 2,
//	  "num_matches": 3,
//	  "limit_hit": false,
//	  "canceled": false,
//	  "statistics": {"files_scanned": 247, "bytes_searched": 1843200, ...},
//	  "matches": [
//	    {
//	      "path": "/path/to/project/main.go",
//	      "lines": [{"line": 12, "text": "// TODO(ds): flags", "ranges": [[3, 12]]}]
//	    }
//	  ]
//	}
//
// Ranges are byte offsets into the line text.
//
// # Tool: search_history
//
// Without arguments the most recent runs are listed. A run_id returns one run
// together with the files it matched.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "contentsearch": {
//	      "command": "/usr/local/bin/contentsearch",
//	      "args": ["serve"]
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values which the framework encodes as JSON-RPC errors.
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments, bad pattern)
//   - -32603: Internal error (database, worker startup)
//   - -32001: Run not found
//   - -32002: History disabled
//   - -32003: Search failed
//   - -32004: Empty pattern
package mcp
