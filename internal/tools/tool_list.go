package tools

import (
	"sort"

	"github.com/bookrag/bookrag/internal/schema"
)

// ToolList holds a named set of tools and exposes them for LLM calls and
// for the MCP server bridge.
type ToolList struct {
	tools map[string]schema.Tool
}

func NewToolList(ts ...schema.Tool) *ToolList {
	list := ToolList{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		list.tools[t.Name()] = t
	}

	return &list
}

// Tools returns the tools sorted by name.
func (r *ToolList) Tools() []schema.Tool {
	out := make([]schema.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Specs returns the advertised form of every tool, sorted by name.
func (r *ToolList) Specs() []schema.ToolSpec {
	ts := r.Tools()
	specs := make([]schema.ToolSpec, 0, len(ts))
	for _, t := range ts {
		specs = append(specs, schema.SpecOf(t))
	}
	return specs
}
