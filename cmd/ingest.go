package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/dependency"
	"github.com/bookrag/bookrag/internal/ingest"
)

var (
	ingestConcurrency int
	ingestWatch       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl|-|dir>",
	Short: "Index catalog records (one JSON object per line) into the document store",
	Long:  "Index catalog records (one JSON object per line) into the document store.\nWith --watch the argument is a directory whose .jsonl files are indexed, then re-indexed when they change.",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "j", 4, "Parallel upserts")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "Watch a directory for .jsonl files")
}

func runIngest(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	st, err := container.Store()
	if err != nil {
		return err
	}

	if ingestWatch {
		fmt.Printf("%s Watching %s for catalog files. Press Ctrl+C to stop.\n", logo, args[0])
		return ingest.Watch(ctx, st, args[0], ingest.WithConcurrency(ingestConcurrency))
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	stats, err := ingest.Run(ctx, st, in, ingest.WithConcurrency(ingestConcurrency))
	fmt.Printf("%s Read %d records: %d indexed, %d skipped\n", logo, stats.Read, stats.Upserted, stats.Skipped)
	if err != nil {
		return err
	}

	if n, err := st.Count(ctx); err == nil {
		fmt.Printf("  Collection %q now holds %d documents\n", cfg.Store.Collection, n)
	}
	return nil
}
