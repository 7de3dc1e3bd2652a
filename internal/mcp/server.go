package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// Tool names
const (
	ToolListWatches = "prwatch_list_watches"
	ToolGetWatchers = "prwatch_get_watchers"
	ToolUnwatch     = "prwatch_unwatch"
)

// Server exposes the watch registry as MCP tools
type Server struct {
	server  *sdk.Server
	handler *Handler
	logger  zerolog.Logger
}

// NewServer creates a new MCP server backed by handler
func NewServer(handler *Handler, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    "prwatch-tools",
			Version: version,
		}, nil),
		handler: handler,
		logger:  log.Component("mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolListWatches,
		Description: "List every watched pull request and who is watching it.",
	}, func(ctx context.Context, _ *sdk.CallToolRequest, in ListWatchesInput) (*sdk.CallToolResult, WatchList, error) {
		out, err := s.handler.ListWatches(ctx, in)
		s.logCall(ToolListWatches, err)
		if err != nil {
			return nil, WatchList{}, err
		}
		return nil, *out, nil
	})

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolGetWatchers,
		Description: "Get the watchers of one pull request, by resource key or by link.",
	}, func(ctx context.Context, _ *sdk.CallToolRequest, in ResourceInput) (*sdk.CallToolResult, Watch, error) {
		out, err := s.handler.GetWatchers(ctx, in)
		s.logCall(ToolGetWatchers, err)
		if err != nil {
			return nil, Watch{}, err
		}
		return nil, *out, nil
	})

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolUnwatch,
		Description: "Stop a user watching a pull request, by resource key or by link.",
	}, func(ctx context.Context, _ *sdk.CallToolRequest, in UnwatchInput) (*sdk.CallToolResult, UnwatchResult, error) {
		out, err := s.handler.Unwatch(ctx, in)
		s.logCall(ToolUnwatch, err)
		if err != nil {
			return nil, UnwatchResult{}, err
		}
		return nil, *out, nil
	})
}

func (s *Server) logCall(tool string, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Str("tool", tool).Msg("tool call failed")
		return
	}
	s.logger.Debug().Str("tool", tool).Msg("tool call")
}

// Run serves over stdio until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *Server) GetServer() *sdk.Server {
	return s.server
}
