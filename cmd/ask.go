package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagQuestion string
	flagK        int
)

var askCmd = &cobra.Command{
	Use:   "ask [product-id]",
	Short: "Ask questions about a product's documentation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var productID string
		if len(args) == 1 {
			productID = args[0]
		}

		m := newMatcher(cfg)
		if productID != "" && !m.ValidateProductID(productID) {
			return fmt.Errorf("unknown product id %q", productID)
		}

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		gen, err := newGenerator(cfg)
		if err != nil {
			return err
		}

		ask := func(question string) {
			chunks, err := engine.Retrieve(question, productID, flagK)
			if err != nil {
				fmt.Fprintf(os.Stderr, "retrieval error: %v\n", err)
				return
			}
			if len(chunks) == 0 {
				fmt.Println("No relevant information found in the product documentation.")
				return
			}
			contexts := make([]string, len(chunks))
			for i, c := range chunks {
				contexts[i] = c.Text
			}
			answerText, err := gen.Generate(context.Background(), question, contexts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "llm error: %v\n", err)
				return
			}
			fmt.Println()
			fmt.Println(answerText)
			fmt.Println()
		}

		if flagQuestion != "" {
			ask(flagQuestion)
			return nil
		}

		scanner := bufio.NewScanner(os.Stdin)
		if productID != "" {
			fmt.Printf("prodintel ask — product %s (/exit to quit)\n\n", productID)
		} else {
			fmt.Println("prodintel ask — all products (/exit to quit)")
			fmt.Println()
		}
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if question == "/exit" || question == "/quit" {
				return nil
			}
			ask(question)
		}
		return scanner.Err()
	},
}

func init() {
	askCmd.Flags().StringVarP(&flagQuestion, "question", "q", "", "ask a single question and exit")
	askCmd.Flags().IntVar(&flagK, "k", 0, "number of chunks to retrieve (default from config)")
	rootCmd.AddCommand(askCmd)
}
