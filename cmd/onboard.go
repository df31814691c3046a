package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and data directories",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := configPath

	var cfg *config.Config
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		cfg = existing
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		def := config.DefaultConfig()
		if err := config.Save(&def, cfgPath); err != nil {
			return err
		}
		cfg = &def
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	for _, dir := range []string{cfg.SessionDir(), cfg.ChromemPath()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		fmt.Printf("✓ Directory %s\n", dir)
	}

	fmt.Printf("\n%s bookrag is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key and catalog.baseUrl to %s\n", cfgPath)
	fmt.Println("  2. Index the catalog:  bookrag ingest books.jsonl")
	fmt.Println("  3. Start the tools:    bookrag toolserver")
	fmt.Println("  4. Chat:               bookrag agent -m \"Recommend a sci-fi classic under 20000\"")
	fmt.Println("     or serve the API:   bookrag serve")
	return nil
}
