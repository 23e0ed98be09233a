package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the documentation retrieval index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		fmt.Printf("Indexing %s...\n", cfg.DocsDir)
		start := time.Now()

		stats, err := engine.Rebuild()
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Documents: %d\n", stats.Documents)
		fmt.Printf("  Chunks:    %d\n", stats.Chunks)
		if stats.Chunks > 0 {
			fmt.Printf("  Dimension: %d\n", stats.Dimension)
		} else {
			fmt.Println("  Index left empty (no documents found)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
