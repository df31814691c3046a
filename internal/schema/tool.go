package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all LLM-callable tools must satisfy.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ToolSpec is a tool as advertised by a tool backend: name, description and
// parameter schema. It carries no execution behaviour.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// SpecOf describes t as a ToolSpec.
func SpecOf(t Tool) ToolSpec {
	return ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}

// Definition returns the spec in OpenAI function-calling format.
func (s ToolSpec) Definition() map[string]any {
	var params any
	if err := json.Unmarshal(s.Parameters, &params); err != nil || params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  params,
		},
	}
}

// HasProperty reports whether the parameter schema declares a top-level
// property called name.
func (s ToolSpec) HasProperty(name string) bool {
	var params struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(s.Parameters, &params); err != nil {
		return false
	}
	_, ok := params.Properties[name]
	return ok
}
