// Package store adapts embedding-indexed document databases to the catalog
// retrieval contract: upsert by catalog key and similarity query with an
// optional conjunctive predicate.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/bookrag/bookrag/internal/filter"
)

// ErrPredicateRejected is returned by Query when the backend cannot evaluate
// the supplied predicate. Callers may retry without a predicate.
var ErrPredicateRejected = errors.New("predicate rejected by document store")

// Store is the document store contract used by the retrieval engine and the
// ingestion command.
type Store interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]any) error
	Query(ctx context.Context, text string, topK int, pred filter.Predicate) ([]Candidate, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// EmbedFunc produces an embedding vector for text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// CatalogItem is one indexed book. Metadata keys are the mapstructure tags.
type CatalogItem struct {
	ID          string  `mapstructure:"isbn" json:"isbn"`
	Title       string  `mapstructure:"title" json:"title"`
	Author      string  `mapstructure:"author" json:"author"`
	Category    string  `mapstructure:"category" json:"category"`
	Price       int     `mapstructure:"price" json:"price"`
	Popularity  int     `mapstructure:"popularity" json:"popularity"`
	Rating      float64 `mapstructure:"rating" json:"rating"`
	PubDate     int     `mapstructure:"pub_date" json:"pub_date"`
	Description string  `mapstructure:"description" json:"description"`
	Link        string  `mapstructure:"link" json:"link,omitempty"`
}

// Candidate is one ranked hit returned by Query, most similar first.
type Candidate struct {
	Item       CatalogItem
	Similarity float32
}

// Metadata returns the persisted metadata layout for item.
func (item CatalogItem) Metadata() map[string]any {
	return map[string]any{
		"isbn":        item.ID,
		"title":       item.Title,
		"author":      item.Author,
		"category":    item.Category,
		"price":       item.Price,
		"popularity":  item.Popularity,
		"rating":      item.Rating,
		"pub_date":    item.PubDate,
		"description": item.Description,
		"link":        item.Link,
	}
}

// DocumentText is the text that gets embedded for item.
func (item CatalogItem) DocumentText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", item.Title)
	fmt.Fprintf(&sb, "Author: %s\n", item.Author)
	fmt.Fprintf(&sb, "Genre: %s\n", item.Category)
	fmt.Fprintf(&sb, "Description: %s", item.Description)
	return sb.String()
}

// decodeItem builds a CatalogItem from stored metadata. Values may be typed
// (qdrant payloads) or stringly typed (chromem metadata).
func decodeItem(id string, metadata map[string]any) (CatalogItem, error) {
	var item CatalogItem
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &item,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return item, fmt.Errorf("create metadata decoder: %w", err)
	}
	if err := dec.Decode(metadata); err != nil {
		return item, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	if item.ID == "" {
		item.ID = id
	}
	return item, nil
}
