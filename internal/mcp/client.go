package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/client"
	gomcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/bookrag/bookrag/internal/schema"
)

// ErrNotConnected is returned when the session is closed or marked unhealthy.
var ErrNotConnected = errors.New("mcp session not connected")

const protocolVersion = "2024-11-05"

// Session is the long-lived connection to the tool server. One Session is
// shared by all requests; ListTools and CallTool are safe for concurrent use.
type Session struct {
	name   string
	client *client.Client

	mu     sync.RWMutex
	closed bool
	ready  atomic.Bool
}

// newSession starts c on streamCtx and initializes it within ctx. The
// transport stream of SSE clients lives as long as streamCtx, so it must
// outlive the handshake.
func newSession(streamCtx, ctx context.Context, name string, c *client.Client, start bool) (*Session, error) {
	if start {
		if err := c.Start(streamCtx); err != nil {
			return nil, fmt.Errorf("start MCP client: %w", err)
		}
	}

	initReq := gomcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = gomcp.Implementation{Name: "bookrag", Version: "0.1"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	s := &Session{name: name, client: c}
	s.ready.Store(true)
	return s, nil
}

// Healthy reports whether the session is open and the last health check succeeded.
func (s *Session) Healthy() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.ready.Load()
}

// SetHealthy records the outcome of a health check.
func (s *Session) SetHealthy(ok bool) {
	s.ready.Store(ok)
}

// ListTools returns the tools advertised by the server.
func (s *Session) ListTools(ctx context.Context) ([]schema.ToolSpec, error) {
	c, err := s.acquire()
	if err != nil {
		return nil, err
	}

	resp, err := c.ListTools(ctx, gomcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	specs := make([]schema.ToolSpec, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		specs = append(specs, schema.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  inputSchema(t),
		})
	}
	return specs, nil
}

// CallTool invokes a named tool. A result flagged as an error by the server
// is returned as an error carrying its text.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c, err := s.acquire()
	if err != nil {
		return "", err
	}

	req := gomcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := c.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	var parts []string
	for _, content := range resp.Content {
		if text, ok := content.(gomcp.TextContent); ok && text.Text != "" {
			parts = append(parts, text.Text)
		}
	}
	out := strings.Join(parts, "\n")

	if resp.IsError {
		if out == "" {
			out = "unknown error"
		}
		return "", fmt.Errorf("tool %s: %s", name, out)
	}
	if out == "" {
		out = "(no output)"
	}
	return out, nil
}

// Ping checks that the server still answers.
func (s *Session) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotConnected
	}
	return s.client.Ping(ctx)
}

// Close tears the session down. Subsequent calls fail with ErrNotConnected.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ready.Store(false)
	return s.client.Close()
}

func (s *Session) acquire() (*client.Client, error) {
	if s == nil {
		return nil, ErrNotConnected
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || !s.ready.Load() {
		return nil, ErrNotConnected
	}
	return s.client, nil
}

func inputSchema(t gomcp.Tool) json.RawMessage {
	if len(t.RawInputSchema) > 0 {
		return t.RawInputSchema
	}
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return data
}
