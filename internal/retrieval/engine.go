// Package retrieval implements the hybrid retrieval engine: semantic search
// over the indexed catalog snapshot, reconciled with live catalog data.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookrag/bookrag/internal/catalog"
	"github.com/bookrag/bookrag/internal/filter"
	"github.com/bookrag/bookrag/internal/metrics"
	"github.com/bookrag/bookrag/internal/store"
)

const (
	// DefaultTopK is the number of semantic candidates fetched per context search.
	DefaultTopK = 5
	// KeywordLimit caps the number of entries returned by a keyword search.
	KeywordLimit = 3

	keywordFetch = 10
)

// Popularity tier thresholds on the effective popularity score. Fixed policy.
const (
	BestsellerThreshold = 50000
	PopularThreshold    = 10000
)

// Provenance tells whether a result used live data.
type Provenance string

const (
	ProvenanceIndexed Provenance = "indexed"
	ProvenanceLive    Provenance = "live-enriched"
)

// Tier is a coarse popularity bucket.
type Tier string

const (
	TierNone       Tier = "none"
	TierPopular    Tier = "popular"
	TierBestseller Tier = "bestseller"
)

// TierFor buckets a popularity score.
func TierFor(popularity int) Tier {
	switch {
	case popularity >= BestsellerThreshold:
		return TierBestseller
	case popularity >= PopularThreshold:
		return TierPopular
	default:
		return TierNone
	}
}

// Result is one reconciled retrieval hit.
type Result struct {
	Item       store.CatalogItem
	Live       *catalog.LiveSnapshot
	Provenance Provenance
	Tier       Tier
}

// Price prefers the live price when one was fetched.
func (r Result) Price() int {
	if r.Live != nil && r.Live.Price > 0 {
		return r.Live.Price
	}
	return r.Item.Price
}

// Popularity prefers the live popularity score when one was fetched.
func (r Result) Popularity() int {
	if r.Live != nil {
		return r.Live.Popularity
	}
	return r.Item.Popularity
}

// DocumentStore is the similarity query side of store.Store.
type DocumentStore interface {
	Query(ctx context.Context, text string, topK int, pred filter.Predicate) ([]store.Candidate, error)
}

// LiveCatalog is the subset of the live catalog client the engine uses.
type LiveCatalog interface {
	Search(ctx context.Context, keyword string, limit int) ([]catalog.Item, error)
	LookupBatch(ctx context.Context, ids []string) (map[string]catalog.LiveSnapshot, error)
	Lookup(ctx context.Context, id string) (catalog.Item, error)
}

// Engine orchestrates filter translation, semantic search and live enrichment.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	docs    DocumentStore
	live    LiveCatalog
	topK    int
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopK overrides DefaultTopK.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine. live may be nil, in which case every result is
// served from the index alone.
func NewEngine(docs DocumentStore, live LiveCatalog, opts ...Option) *Engine {
	e := &Engine{docs: docs, live: live, topK: DefaultTopK}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Retrieve runs the semantic query and reconciles the candidates with live data.
// Only document store failures are returned as errors.
func (e *Engine) Retrieve(ctx context.Context, query string, filters map[string]any) ([]Result, error) {
	pred := filter.Translate(filters)

	cands, err := e.docs.Query(ctx, query, e.topK, pred)
	if pred != nil && errors.Is(err, store.ErrPredicateRejected) {
		slog.Warn("retrieval: predicate rejected, retrying unfiltered", "where", pred.Where(), "err", err)
		e.metrics.Retrieval("context", "unfiltered_retry")
		cands, err = e.docs.Query(ctx, query, e.topK, nil)
	}
	if err != nil {
		e.metrics.Retrieval("context", "store_error")
		return nil, fmt.Errorf("document store query: %w", err)
	}
	if len(cands) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.Item.ID)
	}
	snaps := e.lookupLive(ctx, ids)

	results := make([]Result, 0, len(cands))
	for _, c := range cands {
		r := Result{Item: c.Item, Provenance: ProvenanceIndexed}
		if snap, ok := snaps[c.Item.ID]; ok {
			r.Live = &snap
			r.Provenance = ProvenanceLive
		}
		r.Tier = TierFor(r.Popularity())
		results = append(results, r)
	}
	return results, nil
}

// ContextSearch is the rendered form of Retrieve.
func (e *Engine) ContextSearch(ctx context.Context, query string, filters map[string]any) (string, error) {
	results, err := e.Retrieve(ctx, query, filters)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		e.metrics.Retrieval("context", "no_results")
		return NoResults, nil
	}
	e.metrics.Retrieval("context", "ok")
	return renderResults(results), nil
}

// KeywordSearch queries the live catalog directly. Only the maxPrice filter is
// applied on this path.
func (e *Engine) KeywordSearch(ctx context.Context, keyword string, filters map[string]any) (string, error) {
	if e.live == nil {
		e.metrics.Retrieval("keyword", "no_live")
		return fmt.Sprintf(NoKeywordResults, keyword), nil
	}

	items, err := e.live.Search(ctx, keyword, keywordFetch)
	if err != nil {
		slog.Warn("retrieval: keyword search failed", "keyword", keyword, "err", err)
		e.metrics.Retrieval("keyword", "live_error")
		return fmt.Sprintf(NoKeywordResults, keyword), nil
	}
	if len(items) == 0 {
		e.metrics.Retrieval("keyword", "no_results")
		return fmt.Sprintf(NoKeywordResults, keyword), nil
	}

	maxPrice := filter.Parse(filters).MaxPrice
	kept := make([]catalog.Item, 0, KeywordLimit)
	for _, it := range items {
		if maxPrice > 0 && it.Price > maxPrice {
			continue
		}
		kept = append(kept, it)
		if len(kept) == KeywordLimit {
			break
		}
	}
	if len(kept) == 0 {
		e.metrics.Retrieval("keyword", "filtered_out")
		return fmt.Sprintf(FilteredOut, len(items), keyword, maxPrice), nil
	}

	e.metrics.Retrieval("keyword", "ok")
	return renderKeyword(kept), nil
}

// DetailLookup fetches one item's extended record by catalog key.
func (e *Engine) DetailLookup(ctx context.Context, id string) (string, error) {
	if e.live == nil {
		return fmt.Sprintf(DetailNotFound, id), nil
	}

	it, err := e.live.Lookup(ctx, id)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			slog.Warn("retrieval: detail lookup failed", "id", id, "err", err)
		}
		e.metrics.Retrieval("detail", "not_found")
		return fmt.Sprintf(DetailNotFound, id), nil
	}

	e.metrics.Retrieval("detail", "ok")
	return renderDetail(it), nil
}

// lookupLive fetches live snapshots for ids in one batch. Any failure is
// logged and treated as "no live data".
func (e *Engine) lookupLive(ctx context.Context, ids []string) map[string]catalog.LiveSnapshot {
	if e.live == nil {
		return nil
	}
	snaps, err := e.live.LookupBatch(ctx, ids)
	if err != nil {
		slog.Warn("retrieval: live enrichment unavailable", "ids", len(ids), "err", err)
		e.metrics.Retrieval("context", "live_degraded")
		return nil
	}
	return snaps
}
