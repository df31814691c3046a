package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bookrag/bookrag/internal/schema"
	"github.com/bookrag/bookrag/internal/tools"
)

// NewServer exposes every tool in list as an MCP tool.
func NewServer(list *tools.ToolList, version string) *server.MCPServer {
	srv := server.NewMCPServer("bookrag", version, server.WithToolCapabilities(false))
	for _, t := range list.Tools() {
		srv.AddTool(gomcp.NewToolWithRawSchema(t.Name(), t.Description(), t.Parameters()), toolHandler(t))
		slog.Debug("MCP tool exposed", "tool", t.Name())
	}
	return srv
}

func toolHandler(t schema.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		out, err := t.Execute(ctx, req.GetArguments())
		if err != nil {
			slog.Warn("MCP tool failed", "tool", t.Name(), "err", err)
			return gomcp.NewToolResultError(err.Error()), nil
		}
		return gomcp.NewToolResultText(out), nil
	}
}

// Serve runs srv on the given transport until ctx is cancelled. addr is
// ignored for stdio.
func Serve(ctx context.Context, srv *server.MCPServer, transportName, addr string) error {
	switch transportName {
	case "", TransportSSE:
		sse := server.NewSSEServer(srv)
		return serveHTTP(ctx, addr, sse.Start, sse.Shutdown)
	case TransportStreamable:
		h := server.NewStreamableHTTPServer(srv)
		return serveHTTP(ctx, addr, h.Start, h.Shutdown)
	case TransportStdio:
		err := server.NewStdioServer(srv).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serve stdio: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown MCP transport %q", transportName)
	}
}

func serveHTTP(ctx context.Context, addr string, start func(string) error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- start(addr) }()

	slog.Info("MCP tool server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown MCP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
