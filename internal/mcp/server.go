package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/akiramei/funcqc-sub004/internal/diff"
	"github.com/akiramei/funcqc-sub004/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "funcqc-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.funcqc/funcqc.db"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	differ  *diff.Engine
}

// NewServer creates a new MCP server instance backed by the snapshot store
// at dbPath.
func NewServer(dbPath string) (*Server, error) {
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".funcqc", "funcqc.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		storage: store,
		differ:  diff.NewEngine(store),
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(listSnapshotsTool(), s.handleListSnapshots)
	s.mcp.AddTool(getFunctionsTool(), s.handleGetFunctions)
	s.mcp.AddTool(diffSnapshotsTool(), s.handleDiffSnapshots)
	s.mcp.AddTool(callGraphStatsTool(), s.handleCallGraphStats)
	s.mcp.AddTool(extractSourceTool(), s.handleExtractSource)
}
