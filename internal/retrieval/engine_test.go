package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookrag/bookrag/internal/catalog"
	"github.com/bookrag/bookrag/internal/filter"
	"github.com/bookrag/bookrag/internal/store"
)

type fakeDocs struct {
	cands []store.Candidate
	errs  []error
	preds []filter.Predicate
}

func (f *fakeDocs) Query(_ context.Context, _ string, topK int, pred filter.Predicate) ([]store.Candidate, error) {
	f.preds = append(f.preds, pred)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.cands) > topK {
		return f.cands[:topK], nil
	}
	return f.cands, nil
}

type fakeLive struct {
	search    []catalog.Item
	searchErr error
	snaps     map[string]catalog.LiveSnapshot
	batchErr  error
	batches   int
	detail    map[string]catalog.Item
}

func (f *fakeLive) Search(context.Context, string, int) ([]catalog.Item, error) {
	return f.search, f.searchErr
}

func (f *fakeLive) LookupBatch(_ context.Context, _ []string) (map[string]catalog.LiveSnapshot, error) {
	f.batches++
	return f.snaps, f.batchErr
}

func (f *fakeLive) Lookup(_ context.Context, id string) (catalog.Item, error) {
	it, ok := f.detail[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return it, nil
}

func candidates() []store.Candidate {
	return []store.Candidate{
		{Item: store.CatalogItem{ID: "a", Title: "Dune", Author: "Herbert", Category: "SF", Price: 18000, Popularity: 60000, PubDate: 19650801}},
		{Item: store.CatalogItem{ID: "b", Title: "Neuromancer", Author: "Gibson", Category: "SF", Price: 15000, Popularity: 12000}},
		{Item: store.CatalogItem{ID: "c", Title: "Solaris", Author: "Lem", Category: "SF", Price: 14000, Popularity: 100}},
	}
}

func TestTierFor_Boundaries(t *testing.T) {
	cases := map[int]Tier{
		0:     TierNone,
		9999:  TierNone,
		10000: TierPopular,
		49999: TierPopular,
		50000: TierBestseller,
	}
	for score, want := range cases {
		assert.Equal(t, want, TierFor(score), "score %d", score)
	}
}

func TestContextSearch_LiveFailureKeepsIndexed(t *testing.T) {
	docs := &fakeDocs{cands: candidates()}
	live := &fakeLive{batchErr: errors.New("timeout")}
	e := NewEngine(docs, live)

	results, err := e.Retrieve(context.Background(), "desert planet", nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, ProvenanceIndexed, r.Provenance)
		assert.Nil(t, r.Live)
	}
	assert.Equal(t, 1, live.batches)

	text, err := e.ContextSearch(context.Background(), "desert planet", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "1. Dune [indexed] [bestseller]")
	assert.NotContains(t, text, "[live]")
}

func TestContextSearch_LiveOverridesIndexed(t *testing.T) {
	docs := &fakeDocs{cands: candidates()}
	live := &fakeLive{snaps: map[string]catalog.LiveSnapshot{
		"b": {ID: "b", Price: 13500, Popularity: 55000, UsedCount: 3, UsedMinPrice: 7000},
	}}
	e := NewEngine(docs, live)

	results, err := e.Retrieve(context.Background(), "cyberpunk", nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	b := results[1]
	assert.Equal(t, ProvenanceLive, b.Provenance)
	assert.Equal(t, 13500, b.Price())
	assert.Equal(t, 55000, b.Popularity())
	assert.Equal(t, TierBestseller, b.Tier)
	assert.Equal(t, ProvenanceIndexed, results[0].Provenance)

	text, err := e.ContextSearch(context.Background(), "cyberpunk", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "2. Neuromancer [live] [bestseller]")
	assert.Contains(t, text, "3 used from 7000 won")
}

func TestContextSearch_Idempotent(t *testing.T) {
	docs := &fakeDocs{cands: candidates()}
	live := &fakeLive{snaps: map[string]catalog.LiveSnapshot{"a": {ID: "a", Price: 17000, Popularity: 61000}}}
	e := NewEngine(docs, live)

	first, err := e.ContextSearch(context.Background(), "q", map[string]any{"maxPrice": 20000})
	require.NoError(t, err)
	second, err := e.ContextSearch(context.Background(), "q", map[string]any{"maxPrice": 20000})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestContextSearch_NoResults(t *testing.T) {
	e := NewEngine(&fakeDocs{}, &fakeLive{})
	text, err := e.ContextSearch(context.Background(), "nothing", nil)
	require.NoError(t, err)
	assert.Equal(t, NoResults, text)
}

func TestContextSearch_PredicateRejectedRetriesOnce(t *testing.T) {
	docs := &fakeDocs{cands: candidates(), errs: []error{store.ErrPredicateRejected}}
	e := NewEngine(docs, nil)

	results, err := e.Retrieve(context.Background(), "q", map[string]any{"categoryName": "SF"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	require.Len(t, docs.preds, 2)
	assert.NotNil(t, docs.preds[0])
	assert.Nil(t, docs.preds[1])
}

func TestContextSearch_RejectedTwiceIsHardError(t *testing.T) {
	docs := &fakeDocs{errs: []error{store.ErrPredicateRejected, store.ErrPredicateRejected}}
	e := NewEngine(docs, nil)

	_, err := e.ContextSearch(context.Background(), "q", map[string]any{"maxPrice": 1000})
	require.Error(t, err)
	assert.Len(t, docs.preds, 2)
}

func TestContextSearch_StoreErrorIsHard(t *testing.T) {
	docs := &fakeDocs{errs: []error{errors.New("disk gone")}}
	e := NewEngine(docs, &fakeLive{})

	_, err := e.ContextSearch(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Len(t, docs.preds, 1)
}

func TestContextSearch_UnfilteredPassesNilPredicate(t *testing.T) {
	docs := &fakeDocs{cands: candidates()}
	e := NewEngine(docs, nil, WithTopK(2))

	results, err := e.Retrieve(context.Background(), "q", map[string]any{"maxPrice": "abc"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Nil(t, docs.preds[0])
}

func TestKeywordSearch_MaxPriceDropsExpensive(t *testing.T) {
	live := &fakeLive{search: []catalog.Item{
		{ID: "1", Title: "Cheap", Price: 12000},
		{ID: "2", Title: "Pricey", Price: 25000},
		{ID: "3", Title: "Fair", Price: 19000},
	}}
	e := NewEngine(&fakeDocs{}, live)

	text, err := e.KeywordSearch(context.Background(), "novel", map[string]any{"maxPrice": 20000})
	require.NoError(t, err)
	assert.Contains(t, text, "Cheap")
	assert.Contains(t, text, "Fair")
	assert.NotContains(t, text, "Pricey")
	assert.Equal(t, 2, strings.Count(text, "[live]"))
}

func TestKeywordSearch_AtMostThree(t *testing.T) {
	var items []catalog.Item
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		items = append(items, catalog.Item{ID: title, Title: "Book " + title, Price: 1000})
	}
	e := NewEngine(&fakeDocs{}, &fakeLive{search: items})

	text, err := e.KeywordSearch(context.Background(), "book", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "3. Book C")
	assert.NotContains(t, text, "Book D")
}

func TestKeywordSearch_FilteredOutIsDistinct(t *testing.T) {
	live := &fakeLive{search: []catalog.Item{{ID: "1", Title: "Pricey", Price: 25000}}}
	e := NewEngine(&fakeDocs{}, live)

	filtered, err := e.KeywordSearch(context.Background(), "novel", map[string]any{"maxPrice": 20000})
	require.NoError(t, err)

	e = NewEngine(&fakeDocs{}, &fakeLive{})
	empty, err := e.KeywordSearch(context.Background(), "novel", map[string]any{"maxPrice": 20000})
	require.NoError(t, err)

	assert.NotEqual(t, filtered, empty)
	assert.Contains(t, filtered, "none matched")
	assert.Equal(t, `No results found for "novel".`, empty)
}

func TestKeywordSearch_LiveFailureIsNoResults(t *testing.T) {
	e := NewEngine(&fakeDocs{}, &fakeLive{searchErr: errors.New("503")})
	text, err := e.KeywordSearch(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, `No results found for "x".`, text)
}

func TestDetailLookup(t *testing.T) {
	live := &fakeLive{detail: map[string]catalog.Item{
		"978": {ID: "978", Title: "Dune", Rating: 9.4, EbookAvailable: true, UsedCount: 2, Description: strings.Repeat("x", 200)},
	}}
	e := NewEngine(&fakeDocs{}, live)

	text, err := e.DetailLookup(context.Background(), "978")
	require.NoError(t, err)
	assert.Contains(t, text, "Rating: 9.4")
	assert.Contains(t, text, "E-book: available")
	assert.Contains(t, text, "Used copies: 2")
	assert.Contains(t, text, "Description: "+strings.Repeat("x", 150)+"\n")

	text, err = e.DetailLookup(context.Background(), "000")
	require.NoError(t, err)
	assert.Equal(t, `No catalog item found for "000".`, text)
}

func TestExcerpt_ExactRuneCut(t *testing.T) {
	s := strings.Repeat("가", 151)
	got := excerpt(s)
	assert.Equal(t, 150, len([]rune(got)))
	assert.Equal(t, "short", excerpt("short"))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "1965-08-01", formatDate(19650801))
	assert.Equal(t, "unknown", formatDate(0))
}
