package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/bookrag/bookrag/internal/filter"
)

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	Path       string // empty keeps the database in memory
	Collection string
	Compress   bool
}

// Chromem is a Store backed by an embedded, optionally persisted chromem-go database.
//
// chromem where-filters only support string equality, so equality clauses are
// pushed down and range clauses are evaluated over the similarity-ranked
// results before truncating to topK.
type Chromem struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromem opens (or creates) the collection described by cfg.
func NewChromem(cfg ChromemConfig, embed EmbedFunc) (*Chromem, error) {
	if cfg.Collection == "" {
		cfg.Collection = "books"
	}

	db := chromem.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", cfg.Path, err)
		}
	}

	col, err := db.GetOrCreateCollection(cfg.Collection, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}

	slog.Debug("chromem store opened", "path", cfg.Path, "collection", cfg.Collection, "documents", col.Count())
	return &Chromem{db: db, col: col}, nil
}

// Upsert adds or replaces the document with the given catalog key.
func (s *Chromem) Upsert(ctx context.Context, id, text string, metadata map[string]any) error {
	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMeta[k] = fmt.Sprint(v)
	}

	doc := chromem.Document{ID: id, Content: text, Metadata: strMeta}
	if err := s.col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Query returns up to topK candidates satisfying pred, most similar first.
func (s *Chromem) Query(ctx context.Context, text string, topK int, pred filter.Predicate) ([]Candidate, error) {
	total := s.col.Count()
	if total == 0 || topK <= 0 {
		return nil, nil
	}

	where, ranges, err := splitPredicate(pred)
	if err != nil {
		return nil, err
	}

	n := topK
	if len(ranges) > 0 {
		n = total
	}
	if n > total {
		n = total
	}

	results, err := s.col.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]Candidate, 0, topK)
	for _, r := range results {
		if !matchesRanges(r.Metadata, ranges) {
			continue
		}

		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		item, err := decodeItem(r.ID, meta)
		if err != nil {
			slog.Warn("skipping undecodable document", "id", r.ID, "err", err)
			continue
		}

		out = append(out, Candidate{Item: item, Similarity: r.Similarity})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (s *Chromem) Count(_ context.Context) (int, error) {
	return s.col.Count(), nil
}

// Close is a no-op; persistent chromem databases write through on every upsert.
func (s *Chromem) Close() error { return nil }

// splitPredicate separates pred into a chromem where map (equality) and
// range clauses evaluated locally. Clauses chromem cannot represent are
// reported as ErrPredicateRejected.
func splitPredicate(pred filter.Predicate) (map[string]string, []filter.Clause, error) {
	if pred == nil {
		return nil, nil, nil
	}

	var (
		where  map[string]string
		ranges []filter.Clause
	)
	for _, c := range pred.Clauses() {
		switch c.Op {
		case filter.OpEq:
			if where == nil {
				where = map[string]string{}
			}
			if prev, dup := where[c.Field]; dup && prev != fmt.Sprint(c.Value) {
				return nil, nil, fmt.Errorf("%w: conflicting equality on %s", ErrPredicateRejected, c.Field)
			}
			where[c.Field] = fmt.Sprint(c.Value)
		case filter.OpLte, filter.OpGte:
			if _, ok := numeric(c.Value); !ok {
				return nil, nil, fmt.Errorf("%w: non-numeric bound on %s", ErrPredicateRejected, c.Field)
			}
			ranges = append(ranges, c)
		default:
			return nil, nil, fmt.Errorf("%w: unsupported operator %q", ErrPredicateRejected, c.Op)
		}
	}
	return where, ranges, nil
}

// matchesRanges reports whether every range clause holds for meta. Missing or
// non-numeric metadata never satisfies a range.
func matchesRanges(meta map[string]string, ranges []filter.Clause) bool {
	for _, c := range ranges {
		raw, ok := meta[c.Field]
		if !ok {
			return false
		}
		got, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false
		}
		bound, _ := numeric(c.Value)
		switch c.Op {
		case filter.OpLte:
			if got > bound {
				return false
			}
		case filter.OpGte:
			if got < bound {
				return false
			}
		}
	}
	return true
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
