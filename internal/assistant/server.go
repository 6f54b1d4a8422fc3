// Package assistant exposes the bench to conversational assistants over
// the Model Context Protocol. Every tool and resource is read-only;
// control stays with the student at the web panel.
package assistant

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voltbench/leakage-simulator/internal/bench"
	"github.com/voltbench/leakage-simulator/internal/logging"
)

// Server wraps the MCP SDK server around a bench.
type Server struct {
	server *sdk.Server
	bench  *bench.Bench
	log    logging.Logger
}

// Config identifies the server to MCP clients.
type Config struct {
	Name    string
	Version string
}

// NewServer builds an MCP server with the lab tools registered.
func NewServer(cfg Config, b *bench.Bench, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		bench: b,
		log:   log,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled. Stdout belongs to the transport; logs must go elsewhere.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info(ctx, "assistant server listening on stdio")
	return s.server.Run(ctx, &sdk.StdioTransport{})
}
