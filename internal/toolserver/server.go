// Package toolserver exposes the need-analysis operations as MCP tools so that
// agents can parse bullet lists, list the wizard steps, request suggestions
// and generate job ads.
package toolserver

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"vacalyser/internal/errors"
	"vacalyser/internal/session"
	"vacalyser/internal/wizard"
)

const serverName = "vacalyser-tools"

// Server wraps an MCP server with the vacalyser tools registered
type Server struct {
	mcpServer *server.MCPServer
	generator session.Generator
	steps     []wizard.Step
	logger    *errors.Logger
}

// New creates the tool server; steps nil means the built-in catalog
func New(gen session.Generator, steps []wizard.Step, version string, logger *errors.Logger) *Server {
	if steps == nil {
		steps = wizard.DefaultSteps()
	}
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	s := &Server{
		generator: gen,
		steps:     steps,
		logger:    logger,
		mcpServer: server.NewMCPServer(serverName, version, server.WithToolCapabilities(true)),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Serve speaks MCP over the given streams until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting MCP tool server", "name", serverName)
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}
