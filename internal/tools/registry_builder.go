package tools

import "github.com/bookrag/bookrag/internal/schema"

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	tools map[string]schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{tools: make(map[string]schema.Tool)}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	b.tools[tool.Name()] = tool

	return b
}

// WithCatalogTools adds context_search, keyword_search and detail_lookup
// backed by s.
func (b *RegistryBuilder) WithCatalogTools(s Searcher) *RegistryBuilder {
	return b.
		WithTool(NewContextSearchTool(s)).
		WithTool(NewKeywordSearchTool(s)).
		WithTool(NewDetailLookupTool(s))
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() *Registry {
	tools := make(map[string]schema.Tool, len(b.tools))
	for k, v := range b.tools {
		tools[k] = v
	}
	return &Registry{tools: tools}
}
