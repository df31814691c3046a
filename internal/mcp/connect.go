package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// Connect opens a Session to the tool server described by cfg. ctx bounds
// the handshake only; the transport stays up until the Session is closed.
func Connect(ctx context.Context, cfg ServerConfig) (*Session, error) {
	return connect(context.WithoutCancel(ctx), ctx, cfg)
}

func connect(streamCtx, ctx context.Context, cfg ServerConfig) (*Session, error) {
	var (
		c     *client.Client
		err   error
		start = true
	)

	switch cfg.transport() {
	case TransportStdio:
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		// the stdio client spawns its subprocess on construction
		c, err = client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		start = false
	case TransportStreamable:
		c, err = client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	case TransportSSE:
		c, err = client.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
	default:
		return nil, fmt.Errorf("unknown MCP transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("create MCP client: %w", err)
	}

	name := cfg.URL
	if name == "" {
		name = cfg.Command
	}

	s, err := newSession(streamCtx, ctx, name, c, start)
	if err != nil {
		return nil, err
	}

	slog.Info("MCP session connected", "server", name, "transport", cfg.transport())
	return s, nil
}
