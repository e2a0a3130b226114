package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/dshills/learnings-mcp/internal/app"
)

const (
	// ServerName is the MCP server name
	ServerName = "learnings-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	app *app.App
}

// NewServer creates a new MCP server instance. The caller owns a and closes
// it after Serve returns.
func NewServer(a *app.App) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp: mcpServer,
		app: a,
	}
	s.registerTools()

	return s
}

// Serve runs the MCP server on stdio and blocks until ctx is done or stdin
// closes
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("name", ServerName).Str("version", ServerVersion).Msg("serving MCP on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchLearningsTool(), s.handleSearchLearnings)
	s.mcp.AddTool(indexLearningsTool(), s.handleIndexLearnings)
	s.mcp.AddTool(indexFileTool(), s.handleIndexFile)
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
	s.mcp.AddTool(findDuplicatesTool(), s.handleFindDuplicates)
	s.mcp.AddTool(consolidateActionTool(), s.handleConsolidateAction)
}
