package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSearcher struct {
	query   string
	filters map[string]any
	id      string
	err     error
}

func (r *recordingSearcher) ContextSearch(_ context.Context, q string, f map[string]any) (string, error) {
	r.query, r.filters = q, f
	return "context:" + q, r.err
}

func (r *recordingSearcher) KeywordSearch(_ context.Context, k string, f map[string]any) (string, error) {
	r.query, r.filters = k, f
	return "keyword:" + k, r.err
}

func (r *recordingSearcher) DetailLookup(_ context.Context, id string) (string, error) {
	r.id = id
	return "detail:" + id, r.err
}

func newTestRegistry(s Searcher) *Registry {
	return NewRegistryBuilder().WithCatalogTools(s).Build()
}

func TestRegistry_HasCatalogTools(t *testing.T) {
	r := newTestRegistry(&recordingSearcher{})
	for _, name := range []ToolName{ToolContextSearch, ToolKeywordSearch, ToolDetailLookup} {
		assert.Contains(t, r.tools, string(name))
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := newTestRegistry(&recordingSearcher{})
	out, err := r.Execute(context.Background(), "nope", nil)
	require.NoError(t, err)
	assert.Equal(t, "Error: Tool 'nope' not found", out)
}

func TestContextSearchTool_PassesFilters(t *testing.T) {
	s := &recordingSearcher{}
	r := newTestRegistry(s)

	out, err := r.Execute(context.Background(), "context_search", map[string]any{
		"query":   "space opera",
		"filters": map[string]any{"maxPrice": 20000.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "context:space opera", out)
	assert.Equal(t, map[string]any{"maxPrice": 20000.0}, s.filters)
}

func TestContextSearchTool_RequiresQuery(t *testing.T) {
	s := &recordingSearcher{}
	out, err := NewContextSearchTool(s).Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Error: query is required", out)
	assert.Empty(t, s.query)
}

func TestContextSearchTool_NonObjectFiltersDropped(t *testing.T) {
	s := &recordingSearcher{}
	out, err := NewContextSearchTool(s).Execute(context.Background(), map[string]any{
		"query":   "poetry",
		"filters": "under 10000",
	})
	require.NoError(t, err)
	assert.Equal(t, "context:poetry", out)
	assert.Nil(t, s.filters)
}

func TestContextSearchTool_EngineErrorPropagates(t *testing.T) {
	s := &recordingSearcher{err: errors.New("store down")}
	_, err := NewContextSearchTool(s).Execute(context.Background(), map[string]any{"query": "x"})
	assert.Error(t, err)
}

func TestDetailLookupTool_NumericISBN(t *testing.T) {
	s := &recordingSearcher{}
	out, err := NewDetailLookupTool(s).Execute(context.Background(), map[string]any{"isbn": " 9780441172719 "})
	require.NoError(t, err)
	assert.Equal(t, "detail:9780441172719", out)
}

func TestParameters_AreObjectSchemas(t *testing.T) {
	r := newTestRegistry(&recordingSearcher{})
	for _, spec := range r.AllTools().Specs() {
		var schema struct {
			Type       string                     `json:"type"`
			Properties map[string]json.RawMessage `json:"properties"`
			Required   []string                   `json:"required"`
		}
		require.NoError(t, json.Unmarshal(spec.Parameters, &schema), spec.Name)
		assert.Equal(t, "object", schema.Type, spec.Name)
		assert.NotEmpty(t, schema.Required, spec.Name)
	}
}

func TestToolList_SpecsSorted(t *testing.T) {
	specs := newTestRegistry(&recordingSearcher{}).AllTools().Specs()
	require.Len(t, specs, 3)

	var names []string
	for _, s := range specs {
		d := s.Definition()
		assert.Equal(t, "function", d["type"])
		fn := d["function"].(map[string]any)
		names = append(names, fn["name"].(string))
	}
	assert.Equal(t, []string{"context_search", "detail_lookup", "keyword_search"}, names)
}

func TestLocalBackend(t *testing.T) {
	s := &recordingSearcher{}
	b := NewLocalBackend(newTestRegistry(s))

	specs, err := b.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 3)

	var withFilters []string
	for _, sp := range specs {
		if sp.HasProperty("filters") {
			withFilters = append(withFilters, sp.Name)
		}
	}
	assert.Equal(t, []string{"context_search", "keyword_search"}, withFilters)

	out, err := b.CallTool(context.Background(), "keyword_search", map[string]any{"keyword": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, "keyword:Dune", out)
}
