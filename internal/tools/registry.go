package tools

import (
	"context"
	"fmt"

	"github.com/bookrag/bookrag/internal/schema"
)

// ToolName is the canonical name of a built-in tool.
type ToolName string

const (
	ToolContextSearch ToolName = "context_search"
	ToolKeywordSearch ToolName = "keyword_search"
	ToolDetailLookup  ToolName = "detail_lookup"
)

// Registry holds a set of named tools and exposes them for execution.
type Registry struct {
	tools map[string]schema.Tool
}

func (r *Registry) AllTools() *ToolList {
	list := ToolList{tools: make(map[string]schema.Tool, len(r.tools))}
	for k, t := range r.tools {
		list.tools[k] = t
	}
	return &list
}

// Execute runs the named tool. An unknown name is reported in the result text,
// not as an error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: Tool '%s' not found", name), nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, args)
}
