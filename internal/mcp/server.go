package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "contentsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance backed by srch
func NewServer(srch *searcher.Searcher, logger *slog.Logger) (*Server, error) {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		searcher: srch,
		logger:   logging.OrDiscard(logger),
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// Serve runs the MCP protocol on stdin/stdout until stdin closes or ctx is done
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchContentTool(), s.handleSearchContent)
	s.mcp.AddTool(searchHistoryTool(), s.handleSearchHistory)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
