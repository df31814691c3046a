package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/config"
	"github.com/bookrag/bookrag/internal/config/tool"
	"github.com/bookrag/bookrag/internal/dependency"
	"github.com/bookrag/bookrag/internal/providers"
	"github.com/bookrag/bookrag/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bookrag status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	fmt.Printf("%s bookrag Status\n\n", logo)

	_, statErr := os.Stat(configPath)
	fmt.Printf("Config:    %s %s\n", configPath, mark(statErr == nil))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Model:     %s\n", cfg.Agent.Model)
	fmt.Printf("Store:     %s (collection %q)\n", storeLabel(cfg), cfg.Store.Collection)
	if cfg.Catalog.BaseURL != "" {
		fmt.Printf("Catalog:   %s\n", cfg.Catalog.BaseURL)
	} else {
		fmt.Println("Catalog:   (not set; index-only answers)")
	}
	if cfg.ToolBackend.Mode == tool.ModeLocal {
		fmt.Println("Tools:     in-process")
	} else {
		fmt.Printf("Tools:     MCP %s %s\n", cfg.ToolBackend.Transport, cfg.ToolBackend.URL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if c, err := dependency.New(ctx, cfg); err == nil {
		defer c.Close()
		if st, err := c.Store(); err != nil {
			fmt.Printf("  store: %v\n", err)
		} else if n, err := st.Count(ctx); err == nil {
			fmt.Printf("  %d documents indexed\n", n)
		}
	}

	if sm, err := session.NewManager(cfg.SessionDir()); err == nil {
		fmt.Printf("Sessions:  %d in %s\n", len(sm.List()), cfg.SessionDir())
	}

	fmt.Println("\nProviders:")
	for _, spec := range providers.PROVIDERS {
		p := cfg.LLM.Providers.ByName(spec.Name)
		if p == nil {
			continue
		}
		label := spec.Label()
		switch {
		case spec.IsLocal:
			if p.APIBase != "" {
				fmt.Printf("  %-20s ✓ %s\n", label, p.APIBase)
			} else {
				fmt.Printf("  %-20s (not set)\n", label)
			}
		case p.APIKey != "":
			fmt.Printf("  %-20s ✓\n", label)
		case spec.EnvKey != "" && os.Getenv(spec.EnvKey) != "":
			fmt.Printf("  %-20s ✓ ($%s)\n", label, spec.EnvKey)
		default:
			fmt.Printf("  %-20s (not set)\n", label)
		}
	}
	return nil
}

func storeLabel(cfg *config.Config) string {
	if cfg.Store.Backend == config.StoreQdrant {
		return fmt.Sprintf("qdrant %s:%d", cfg.Store.Qdrant.Host, cfg.Store.Qdrant.Port)
	}
	return "chromem " + cfg.ChromemPath()
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
