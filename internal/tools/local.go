package tools

import (
	"context"

	"github.com/bookrag/bookrag/internal/schema"
)

// LocalBackend serves a Registry in-process, without an MCP session.
type LocalBackend struct {
	registry *Registry
}

func NewLocalBackend(r *Registry) *LocalBackend {
	return &LocalBackend{registry: r}
}

func (b *LocalBackend) ListTools(_ context.Context) ([]schema.ToolSpec, error) {
	return b.registry.AllTools().Specs(), nil
}

func (b *LocalBackend) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return b.registry.Execute(ctx, name, args)
}
