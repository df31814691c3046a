package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const recordExt = ".jsonl"

// Watch ingests every .jsonl file already in dir, then re-ingests files as
// they are created or written until ctx is cancelled. Upserts are keyed by
// ISBN, so ingesting a file twice is harmless.
func Watch(ctx context.Context, st Upserter, dir string, opts ...Option) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && isRecordFile(e.Name()) {
			ingestFile(ctx, st, filepath.Join(dir, e.Name()), opts)
		}
	}

	slog.Info("ingest: watching for catalog files", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isRecordFile(event.Name) || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}
			ingestFile(ctx, st, event.Name, opts)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("ingest: watcher error", "err", err)
		}
	}
}

func isRecordFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), recordExt)
}

// ingestFile logs rather than returns failures so one bad file does not stop
// the watcher.
func ingestFile(ctx context.Context, st Upserter, path string, opts []Option) {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("ingest: open failed", "path", path, "err", err)
		return
	}
	defer f.Close()

	stats, err := Run(ctx, st, f, opts...)
	if err != nil {
		slog.Warn("ingest: file failed", "path", path, "upserted", stats.Upserted, "err", err)
		return
	}
	if stats.Read > 0 {
		slog.Info("ingest: file indexed", "path", path, "read", stats.Read, "upserted", stats.Upserted, "skipped", stats.Skipped)
	}
}
