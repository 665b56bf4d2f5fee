// Package mcpserver exposes the memory tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/internal/tracing"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "mindvault.mcp"

// Options configures the MCP server
type Options struct {
	Name    string
	Version string
	Logger  zerolog.Logger
}

// Server registers the memory tools on an MCP server
type Server struct {
	mcp    *mcp.Server
	engine *memory.Engine
	logger zerolog.Logger
}

// New creates a server bound to engine with every memory tool registered
func New(engine *memory.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, errors.New("memory engine is required")
	}
	if opts.Name == "" {
		opts.Name = "mindvault"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		engine: engine,
		logger: opts.Logger.With().Str("component", "mcp").Logger(),
	}

	s.registerTools()
	return s, nil
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves the stdio transport until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("Starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// instrument gives every tool call a request id, a span, metrics and a log line.
// A returned error becomes an IsError tool result carrying the error text.
func instrument[In, Out any](s *Server, tool string, h func(ctx context.Context, args In) (*mcp.CallToolResult, Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		ctx = tracing.NewToolCallContext(ctx, tool)
		ctx, span := tracing.StartSpan(ctx, tracerName, "mcp.tool", attribute.String("tool", tool))
		defer span.End()

		logger := tracing.LoggerFromContext(ctx, s.logger)
		start := time.Now()

		result, out, err := h(ctx, args)
		duration := time.Since(start)
		observability.RecordToolCall(tool, duration, err == nil)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn().Err(err).Dur("duration", duration).Msg("Tool call failed")
			var zero Out
			return nil, zero, err
		}

		logger.Debug().Dur("duration", duration).Msg("Tool call completed")
		return result, out, nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
