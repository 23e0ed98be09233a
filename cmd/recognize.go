package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"prodintel/internal/ocr"
)

var flagShowText bool

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Identify a product from a photo of its label or packaging",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		extractor := ocr.NewTesseract(cfg.OCR.TesseractPath)
		text := extractor.ExtractText(context.Background(), image)
		if text == "" {
			fmt.Println("No text could be extracted from the image.")
			return nil
		}
		if flagShowText {
			fmt.Printf("Extracted text: %s\n\n", text)
		}

		m := newMatcher(cfg)
		candidates := m.FindMatches(text, 0)
		if len(candidates) == 0 {
			fmt.Println("No matching products found.")
			return nil
		}

		fmt.Printf("Found %d candidate(s):\n\n", len(candidates))
		for i, c := range candidates {
			fmt.Printf("%d. %s (%s) — score %.3f\n", i+1, c.Title, c.ProductID, c.Score)
			for _, ev := range c.Evidence {
				fmt.Printf("     %s\n", ev)
			}
		}
		return nil
	},
}

func init() {
	recognizeCmd.Flags().BoolVar(&flagShowText, "show-text", false, "print the extracted OCR text")
	rootCmd.AddCommand(recognizeCmd)
}
