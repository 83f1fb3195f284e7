// Package mcpserver exposes the memory store and the analysis pipeline as
// MCP tools over the stdio transport, so an agent can record events and
// request analyses without shelling out to the CLI.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/analyzer"
	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/memory"
	"github.com/fyrsmithlabs/synapse/internal/trace"
)

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "synapse").
	Name string

	// Version is the server version (default: "2.0.0").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "synapse",
		Version: "2.0.0",
		Logger:  zap.NewNop(),
	}
}

// Server is the MCP front end over the analysis services.
type Server struct {
	mcp      *mcp.Server
	cfg      *config.Config
	registry *memory.Registry
	analyzer *analyzer.Analyzer
	logger   *zap.Logger
}

// NewServer creates the MCP server and registers all tools.
func NewServer(srvCfg *Config, cfg *config.Config) (*Server, error) {
	if srvCfg == nil {
		srvCfg = DefaultConfig()
	}
	if srvCfg.Logger == nil {
		srvCfg.Logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    srvCfg.Name,
			Version: srvCfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp: mcpServer,
		cfg: cfg,
		registry: memory.NewRegistry(memory.Options{
			MaxEvents:   cfg.Memory.MaxEvents,
			MaxLogBytes: cfg.Memory.MaxLogMB << 20,
			Logger:      srvCfg.Logger,
		}),
		analyzer: analyzer.New(cfg, srvCfg.Logger),
		logger:   srvCfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.registerEventTools()
	s.registerAnalysisTools()
	s.registerTraceTools()
}

func (s *Server) storeFor(repoPath string) (*memory.Store, error) {
	if repoPath == "" {
		repoPath = "."
	}
	return s.registry.Get(repoPath)
}

func (s *Server) traceFor(repoPath string) (*trace.Tracer, error) {
	store, err := s.storeFor(repoPath)
	if err != nil {
		return nil, err
	}
	return trace.NewTracer(store, s.cfg, s.logger)
}
