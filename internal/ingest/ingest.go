// Package ingest loads catalog records from JSON Lines into a document store.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bookrag/bookrag/internal/catalog"
	"github.com/bookrag/bookrag/internal/store"
)

const (
	defaultConcurrency = 4
	maxLineBytes       = 4 << 20
)

// Upserter is the part of store.Store ingestion needs.
type Upserter interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]any) error
}

// Stats summarizes one Run.
type Stats struct {
	Read     int
	Upserted int
	Skipped  int
}

type Option func(*options)

type options struct {
	concurrency int
}

// WithConcurrency bounds the number of in-flight upserts (and with them
// embedding requests).
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Run reads one catalog record per line from r and upserts it keyed by its
// ISBN. Blank lines are ignored; malformed lines and records without an
// ISBN are skipped with a warning. The first upsert error stops the run.
func Run(ctx context.Context, st Upserter, r io.Reader, opts ...Option) (Stats, error) {
	o := options{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	var stats Stats
	var upserted atomic.Int64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Read++

		item, err := parseLine(line)
		if err != nil {
			slog.Warn("ingest: skipping line", "line", lineNo, "err", err)
			stats.Skipped++
			continue
		}

		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := st.Upsert(gctx, item.ID, item.DocumentText(), item.Metadata()); err != nil {
				return fmt.Errorf("upsert %s: %w", item.ID, err)
			}
			upserted.Add(1)
			return nil
		})
	}
	scanErr := scanner.Err()

	err := g.Wait()
	stats.Upserted = int(upserted.Load())
	if err != nil {
		return stats, err
	}
	if scanErr != nil {
		return stats, fmt.Errorf("read input: %w", scanErr)
	}
	return stats, ctx.Err()
}

func parseLine(line string) (store.CatalogItem, error) {
	var rec catalog.Item
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return store.CatalogItem{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if rec.ID == "" {
		return store.CatalogItem{}, fmt.Errorf("record %q has no isbn13", rec.Title)
	}
	return FromCatalog(rec), nil
}

// FromCatalog converts a live catalog record into its indexed form.
// Snapshot-only fields (used copies, ebook flag) are not indexed.
func FromCatalog(it catalog.Item) store.CatalogItem {
	return store.CatalogItem{
		ID:          it.ID,
		Title:       it.Title,
		Author:      it.Author,
		Category:    it.Category,
		Price:       it.Price,
		Popularity:  it.Popularity,
		Rating:      it.Rating,
		PubDate:     pubDate(it.PubDate),
		Description: it.Description,
		Link:        it.Link,
	}
}

// pubDate turns "2023-10-25" into 20231025, or 0 when it does not parse.
func pubDate(s string) int {
	d, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if err != nil {
		return 0
	}
	return d
}
