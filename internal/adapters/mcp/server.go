package mcpadapter

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/avolkov/grounding/internal/config"
	"github.com/avolkov/grounding/internal/core/ports"
)

const (
	serverName    = "grounding"
	serverVersion = "1.0.0"
)

// Server exposes the retrieval pipeline as MCP tools over stdio.
type Server struct {
	mcp      *server.MCPServer
	searcher ports.EvidenceSearcher
	cfg      config.Config
	logger   *slog.Logger
}

func NewServer(searcher ports.EvidenceSearcher, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:      server.NewMCPServer(serverName, serverVersion),
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(searchQuickTool(), s.handleSearchQuick)
	s.mcp.AddTool(configShowTool(), s.handleConfigShow)
}

// Serve blocks on the stdio transport until the client disconnects.
func (s *Server) Serve(_ context.Context) error {
	return server.ServeStdio(s.mcp)
}
