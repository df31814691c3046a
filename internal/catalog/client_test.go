package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSearch_SendsKeywordAndKey(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.URL.Query().Get("ttbkey"))
		writeJSON(w, map[string]any{"items": []map[string]any{
			{"isbn13": "1", "title": "Dune", "priceSales": 18000, "salesPoint": 52000, "description": "Tom &amp; Jerry"},
		}})
	})

	items, err := c.Search(context.Background(), "dune", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Title)
	assert.Equal(t, 18000, items[0].Price)
	assert.Equal(t, 52000, items[0].Popularity)
	assert.Equal(t, "Tom & Jerry", items[0].Description)
}

func TestLookupBatch_SingleRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/items", r.URL.Path)
		assert.Equal(t, "a,b,c", r.URL.Query().Get("ids"))
		writeJSON(w, map[string]any{"items": []map[string]any{
			{"isbn13": "a", "priceSales": 100, "salesPoint": 5, "usedCount": 2, "usedMinPrice": 50},
			{"isbn13": "c", "priceSales": 300},
		}})
	})

	snaps, err := c.LookupBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, LiveSnapshot{ID: "a", Price: 100, Popularity: 5, UsedCount: 2, UsedMinPrice: 50}, snaps["a"])
	assert.NotContains(t, snaps, "b")
	assert.Contains(t, snaps, "c")
}

func TestLookupBatch_EmptyIDsNoRequest(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})
	snaps, err := c.LookupBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestLookup_NotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"item": nil})
	})

	_, err := c.Lookup(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.Lookup(context.Background(), "empty")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLookup_ExtendedRecord(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/items/9780441172719", r.URL.Path)
		writeJSON(w, map[string]any{"item": map[string]any{
			"isbn13": "9780441172719", "title": "Dune", "customerReviewRank": 9.5,
			"ebookAvailable": true, "usedCount": 4,
		}})
	})

	it, err := c.Lookup(context.Background(), "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, 9.5, it.Rating)
	assert.True(t, it.EbookAvailable)
	assert.Equal(t, 4, it.UsedCount)
}

func TestGet_ServerErrorIsReturned(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.Search(context.Background(), "x", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGet_LongErrorBodyIsCutOnRuneBoundary(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("가", 300), http.StatusInternalServerError)
	})
	_, err := c.Search(context.Background(), "x", 3)
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("가", 200)+"...")
	assert.NotContains(t, err.Error(), strings.Repeat("가", 201))
}

func TestGet_MalformedBodyIsReturned(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	_, err := c.LookupBatch(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestStripHTMLTags(t *testing.T) {
	got := stripHTMLTags("<p>A <b>great</b> novel</p><script>alert(1)</script>")
	assert.Equal(t, "A great novel", got)
}

func TestCleanDescription_HTMLBecomesText(t *testing.T) {
	got := cleanDescription("&lt;p&gt;A <b>great</b> novel&lt;/p&gt;", nil)
	assert.NotContains(t, got, "<")
	assert.NotEmpty(t, got)
}
