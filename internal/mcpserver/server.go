// Package mcpserver exposes a project's engine.Engine as Model Context
// Protocol tools: a thin Server wrapping *mcp.Server, one
// registerTools pass that calls mcp.AddTool per tool with a typed
// handler, and Serve(ctx) running the stdio transport.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	gosdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cqs-dev/cqs/internal/engine"
	"github.com/cqs-dev/cqs/pkg/version"
)

const serverName = "cqs"

// Server adapts one project's engine.Engine to the MCP tool surface.
type Server struct {
	mcp    *gosdkmcp.Server
	engine *engine.Engine
	logger *slog.Logger
}

// ToolInfo is a static description of a registered tool, returned by
// ListTools for diagnostics.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer builds a Server around eng and registers every tool.
func NewServer(eng *engine.Engine, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: eng,
		logger: logger,
	}

	s.mcp = gosdkmcp.NewServer(&gosdkmcp.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, nil)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying SDK server, for callers that need the
// raw handle (e.g. to add resources later).
func (s *Server) MCPServer() *gosdkmcp.Server { return s.mcp }

// Info returns the server's name and version.
func (s *Server) Info() (name, ver string) { return serverName, version.Version }

// ListTools returns the static tool catalog, for diagnostics commands.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search", Description: "Hybrid semantic+keyword search over the indexed codebase."},
		{Name: "gather", Description: "Collects the smallest set of chunks that answers a query via seed search plus call-graph expansion."},
		{Name: "impact", Description: "Lists callers and reaching tests of a named function, with optional transitive depth."},
		{Name: "callers", Description: "Lists direct callers of a named function with call-site context."},
		{Name: "callees", Description: "Lists functions a named function calls."},
		{Name: "related", Description: "Finds functions that share callers, callees, or custom types with a target."},
		{Name: "scout", Description: "Produces a change-planning dashboard: files ranked by relevance, chunks tagged by role."},
		{Name: "onboard", Description: "Produces a guided reading list for a concept: entry point, call chain, key types, tests."},
		{Name: "placement", Description: "Suggests where new code matching a description should live, with the target file's local conventions."},
		{Name: "dead_code", Description: "Lists functions with no discovered callers and no entry-point role."},
		{Name: "health", Description: "Aggregate project health: chunk/note counts, dead code, hotspots, untested risk."},
	}
}

// Serve starts the stdio JSON-RPC transport and blocks until ctx is
// canceled or the transport errors. The caller must not have written anything to stdout
// before calling this: MCP requires stdout exclusively for JSON-RPC.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &gosdkmcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped gracefully")
	return nil
}
