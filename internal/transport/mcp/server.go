// Package mcp exposes record search as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/request"
	"github.com/kailas-cloud/cvsearch/internal/domain/search/result"
)

const serverName = "cvsearch"

// Searcher runs a hybrid search.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Response, error)
}

// RecordReader fetches a single sanitized record.
type RecordReader interface {
	Get(ctx context.Context, id string) (record.Record, error)
}

// Server wraps an MCP server with the search tools registered.
type Server struct {
	mcp     *server.MCPServer
	search  Searcher
	records RecordReader
	logger  *zap.Logger
}

// NewServer creates the MCP server. The logger must not write to stdout,
// which carries the protocol.
func NewServer(search Searcher, records RecordReader, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp: server.NewMCPServer(serverName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		search:  search,
		records: records,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server, for in-process clients and tests.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve runs the server on stdin/stdout until ctx is done or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}
