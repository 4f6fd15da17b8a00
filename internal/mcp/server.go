// Package mcp provides an MCP (Model Context Protocol) server that exposes
// saved spikerecon analysis runs to MCP clients.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/spikerecon/internal/constants"
	"github.com/nvandessel/spikerecon/internal/ratelimit"
	"github.com/nvandessel/spikerecon/internal/store"
)

// Server wraps the MCP SDK server and the analysis store it reads from.
type Server struct {
	server       *sdk.Server
	store        store.AnalysisStore
	root         string
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
}

// Config holds server configuration.
type Config struct {
	Name      string // Server name (e.g., "spikerecon")
	Version   string // Server version
	Root      string // Record directory
	StorePath string // Analysis database; defaults to <Root>/.spikerecon/analysis.db
}

// NewServer opens the analysis store and registers the spikerecon tools.
func NewServer(cfg *Config) (*Server, error) {
	path := cfg.StorePath
	if path == "" {
		path = filepath.Join(cfg.Root, constants.StateDir, constants.AnalysisDBFile)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis store: %w", err)
	}

	return newServer(cfg, st), nil
}

func newServer(cfg *Config, st store.AnalysisStore) *Server {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {},
	})

	s := &Server{
		server:       mcpServer,
		store:        st,
		root:         cfg.Root,
		auditLogger:  NewAuditLogger(filepath.Join(cfg.Root, constants.StateDir)),
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects, the context is
// cancelled or the process is signalled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the store and the audit log.
func (s *Server) Close() error {
	if err := s.auditLogger.Close(); err != nil {
		return err
	}
	return s.store.Close()
}
