package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bookrag/bookrag/internal/dependency"
	"github.com/bookrag/bookrag/internal/mcp"
)

var (
	toolserverTransport string
	toolserverAddr      string
)

var toolserverCmd = &cobra.Command{
	Use:   "toolserver",
	Short: "Serve the catalog tools over MCP",
	RunE:  runToolserver,
}

func init() {
	toolserverCmd.Flags().StringVarP(&toolserverTransport, "transport", "t", "", "sse | streamable-http | stdio (overrides toolServer.transport)")
	toolserverCmd.Flags().StringVarP(&toolserverAddr, "addr", "a", "", "Listen address (overrides toolServer.addr)")
}

func runToolserver(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ts := cfg.ToolServer
	if toolserverTransport != "" {
		ts.Transport = toolserverTransport
	}
	if toolserverAddr != "" {
		ts.Addr = toolserverAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	srv, err := container.ToolServer()
	if err != nil {
		return err
	}

	// stdout carries the protocol in stdio mode.
	if ts.Transport != mcp.TransportStdio {
		fmt.Printf("%s Serving catalog tools over %s on %s\n", logo, ts.Transport, ts.Addr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mcp.Serve(gctx, srv, ts.Transport, ts.Addr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "toolserver error: %v\n", err)
		return err
	}
	return nil
}
