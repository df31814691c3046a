package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Searcher is the retrieval surface the catalog tools expose.
type Searcher interface {
	ContextSearch(ctx context.Context, query string, filters map[string]any) (string, error)
	KeywordSearch(ctx context.Context, keyword string, filters map[string]any) (string, error)
	DetailLookup(ctx context.Context, id string) (string, error)
}

type contextSearchArgs struct {
	Query   string         `json:"query" mapstructure:"query" jsonschema:"required,description=Natural-language description of the books wanted"`
	Filters map[string]any `json:"filters,omitempty" mapstructure:"filters" jsonschema:"description=Optional filters: maxPrice (integer won); categoryName (string); minRating (0-10); minPublicationDate (YYYY-MM-DD)"`
}

type keywordSearchArgs struct {
	Keyword string         `json:"keyword" mapstructure:"keyword" jsonschema:"required,description=Title or author or keyword to look up in the live catalog"`
	Filters map[string]any `json:"filters,omitempty" mapstructure:"filters" jsonschema:"description=Optional filters. Only maxPrice (integer won) is applied"`
}

type detailLookupArgs struct {
	ISBN string `json:"isbn" mapstructure:"isbn" jsonschema:"required,description=ISBN-13 catalog key of the book"`
}

// ---------------------------------------------------------------------------
// ContextSearchTool
// ---------------------------------------------------------------------------

// ContextSearchTool runs a semantic search over the indexed catalog, enriched
// with live price and popularity.
type ContextSearchTool struct {
	s      Searcher
	params json.RawMessage
}

func NewContextSearchTool(s Searcher) *ContextSearchTool {
	return &ContextSearchTool{s: s, params: mustSchema[contextSearchArgs]()}
}

func (t *ContextSearchTool) Name() string { return string(ToolContextSearch) }
func (t *ContextSearchTool) Description() string {
	return "Search the bookstore catalog by meaning. Use for recommendations, themes, moods or genres. " +
		"Returns ranked books with live price, popularity and used-copy availability."
}
func (t *ContextSearchTool) Parameters() json.RawMessage { return t.params }

func (t *ContextSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	var args contextSearchArgs
	if err := decodeArgs(params, &args); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return "Error: query is required", nil
	}
	return t.s.ContextSearch(ctx, args.Query, args.Filters)
}

// ---------------------------------------------------------------------------
// KeywordSearchTool
// ---------------------------------------------------------------------------

// KeywordSearchTool queries the live catalog by exact title, author or keyword.
type KeywordSearchTool struct {
	s      Searcher
	params json.RawMessage
}

func NewKeywordSearchTool(s Searcher) *KeywordSearchTool {
	return &KeywordSearchTool{s: s, params: mustSchema[keywordSearchArgs]()}
}

func (t *KeywordSearchTool) Name() string { return string(ToolKeywordSearch) }
func (t *KeywordSearchTool) Description() string {
	return "Look up books in the live catalog by title, author or keyword. Returns up to 3 matches."
}
func (t *KeywordSearchTool) Parameters() json.RawMessage { return t.params }

func (t *KeywordSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	var args keywordSearchArgs
	if err := decodeArgs(params, &args); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if strings.TrimSpace(args.Keyword) == "" {
		return "Error: keyword is required", nil
	}
	return t.s.KeywordSearch(ctx, args.Keyword, args.Filters)
}

// ---------------------------------------------------------------------------
// DetailLookupTool
// ---------------------------------------------------------------------------

// DetailLookupTool fetches one book's extended record.
type DetailLookupTool struct {
	s      Searcher
	params json.RawMessage
}

func NewDetailLookupTool(s Searcher) *DetailLookupTool {
	return &DetailLookupTool{s: s, params: mustSchema[detailLookupArgs]()}
}

func (t *DetailLookupTool) Name() string { return string(ToolDetailLookup) }
func (t *DetailLookupTool) Description() string {
	return "Get details for one book by ISBN-13: rating, e-book availability, used copies and description."
}
func (t *DetailLookupTool) Parameters() json.RawMessage { return t.params }

func (t *DetailLookupTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	var args detailLookupArgs
	if err := decodeArgs(params, &args); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	id := strings.TrimSpace(args.ISBN)
	if id == "" {
		return "Error: isbn is required", nil
	}
	return t.s.DetailLookup(ctx, id)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// decodeArgs decodes model-supplied arguments into out. Numbers may arrive as
// strings and vice versa. A filters value that is not an object is dropped.
func decodeArgs(params map[string]any, out any) error {
	if f, ok := params["filters"]; ok {
		if _, isMap := f.(map[string]any); !isMap {
			params = maps.Clone(params)
			delete(params, "filters")
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// mustSchema reflects T into an inline JSON schema object.
func mustSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	s := reflector.Reflect(new(T))

	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tool schema for %T: %v", *new(T), err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("tool schema for %T: %v", *new(T), err))
	}
	delete(m, "$schema")
	delete(m, "$id")

	out, _ := json.Marshal(m)
	return out
}
