// Package catalog is a client for the live bookstore catalog REST API: current
// price, popularity and used-copy availability, fetched at query time.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bookrag/bookrag/internal/shared/llmutils"
)

// ErrNotFound is returned by Lookup when the catalog has no item for the key.
var ErrNotFound = errors.New("catalog item not found")

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 4 << 20
	userAgent      = "bookrag/0.1"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Item is one live catalog record.
type Item struct {
	ID             string  `json:"isbn13"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Category       string  `json:"categoryName"`
	Price          int     `json:"priceSales"`
	Popularity     int     `json:"salesPoint"`
	Rating         float64 `json:"customerReviewRank"`
	PubDate        string  `json:"pubDate"`
	Description    string  `json:"description"`
	Link           string  `json:"link"`
	EbookAvailable bool    `json:"ebookAvailable"`
	UsedCount      int     `json:"usedCount"`
	UsedMinPrice   int     `json:"usedMinPrice"`
}

// LiveSnapshot is the per-query live view of an item. It is never persisted.
type LiveSnapshot struct {
	ID           string
	Price        int
	Popularity   int
	UsedCount    int
	UsedMinPrice int
}

// Snapshot extracts the live fields of it.
func (it Item) Snapshot() LiveSnapshot {
	return LiveSnapshot{
		ID:           it.ID,
		Price:        it.Price,
		Popularity:   it.Popularity,
		UsedCount:    it.UsedCount,
		UsedMinPrice: it.UsedMinPrice,
	}
}

type itemsResponse struct {
	Items []Item `json:"items"`
}

type itemResponse struct {
	Item *Item `json:"item"`
}

// Client talks to the live catalog API. Safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// New creates a Client. A zero Timeout uses a five second default.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		baseURL:    u,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Search queries the catalog by keyword.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("q", keyword)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out itemsResponse
	if _, err := c.get(ctx, "/v1/search", q, &out); err != nil {
		return nil, err
	}
	return c.clean(out.Items), nil
}

// LookupBatch fetches live snapshots for ids in a single request. Unknown ids
// are simply absent from the result.
func (c *Client) LookupBatch(ctx context.Context, ids []string) (map[string]LiveSnapshot, error) {
	if len(ids) == 0 {
		return map[string]LiveSnapshot{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))

	var out itemsResponse
	if _, err := c.get(ctx, "/v1/items", q, &out); err != nil {
		return nil, err
	}

	snaps := make(map[string]LiveSnapshot, len(out.Items))
	for _, it := range out.Items {
		if it.ID == "" {
			continue
		}
		snaps[it.ID] = it.Snapshot()
	}
	return snaps, nil
}

// Lookup fetches the extended record for one catalog key.
func (c *Client) Lookup(ctx context.Context, id string) (Item, error) {
	var out itemResponse
	status, err := c.get(ctx, "/v1/items/"+url.PathEscape(id), nil, &out)
	if status == http.StatusNotFound {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	if out.Item == nil || out.Item.ID == "" {
		return Item{}, ErrNotFound
	}

	items := c.clean([]Item{*out.Item})
	return items[0], nil
}

// get performs a GET against path and decodes the JSON body into v. The HTTP
// status is returned even on error so callers can distinguish 404s.
func (c *Client) get(ctx context.Context, path string, q url.Values, v any) (int, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q == nil {
		q = url.Values{}
	}
	if c.apiKey != "" {
		q.Set("ttbkey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("catalog %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read catalog %s: %w", path, err)
	}

	slog.Debug("catalog request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("catalog %s: HTTP %d: %s", path, resp.StatusCode, llmutils.Truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) clean(items []Item) []Item {
	for i := range items {
		items[i].Description = cleanDescription(items[i].Description, c.baseURL)
	}
	return items
}
