package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"prodintel/internal/answer"
	"prodintel/internal/chunker"
	"prodintel/internal/index"
	"prodintel/internal/matcher"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing product identification and Q&A tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m := newMatcher(cfg)
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	s := mcpserver.NewMCPServer("prodintel", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(identifyProductTool(), makeIdentifyHandler(m))
	s.AddTool(searchDocsTool(), makeSearchHandler(engine))
	s.AddTool(askProductTool(), makeAskHandler(m, engine, gen))
	s.AddTool(listProductsTool(), makeListProductsHandler(m))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func identifyProductTool() mcp.Tool {
	return mcp.NewTool("identify_product",
		mcp.WithDescription("Match raw text (e.g. OCR output from a product label) against the catalog and return ranked candidates with confidence scores and evidence."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw text extracted from a product image or label"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of candidates to return (default 3)"),
		),
	)
}

func searchDocsTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Semantically search the indexed product documentation. Optionally restrict results to one product."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithString("product_id",
			mcp.Description("Restrict results to this product"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of passages to return (default 5)"),
		),
	)
}

func askProductTool() mcp.Tool {
	return mcp.NewTool("ask_product",
		mcp.WithDescription("Answer a question about a product using its indexed documentation as context."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("product_id",
			mcp.Required(),
			mcp.Description("Product id from the catalog"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural language question about the product"),
		),
	)
}

func listProductsTool() mcp.Tool {
	return mcp.NewTool("list_products",
		mcp.WithDescription("List all catalog products with id, title, model, and brand."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("brand",
			mcp.Description("Optional brand filter. Case-insensitive."),
		),
	)
}

// --- Handler factories ---

func makeIdentifyHandler(m *matcher.Matcher) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text := req.GetString("text", "")
		if text == "" {
			return mcp.NewToolResultError("text is required"), nil
		}
		k := req.GetInt("k", 0)

		candidates := m.FindMatches(text, k)
		return mcp.NewToolResultText(formatCandidates(candidates)), nil
	}
}

func makeSearchHandler(engine *index.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		productID := req.GetString("product_id", "")
		k := req.GetInt("k", 0)

		chunks, err := engine.Retrieve(query, productID, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatChunks(query, chunks)), nil
	}
}

func makeAskHandler(m *matcher.Matcher, engine *index.Engine, gen answer.Generator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		productID := req.GetString("product_id", "")
		question := req.GetString("question", "")
		if productID == "" || question == "" {
			return mcp.NewToolResultError("product_id and question are required"), nil
		}
		if !m.ValidateProductID(productID) {
			return mcp.NewToolResultError(fmt.Sprintf("product %q not found — call list_products to see available ids", productID)), nil
		}

		chunks, err := engine.Retrieve(question, productID, 0)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcp.NewToolResultText("No relevant information found in the product documentation."), nil
		}

		contexts := make([]string, len(chunks))
		for i, c := range chunks {
			contexts[i] = c.Text
		}
		answerText, err := gen.Generate(ctx, question, contexts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("answer generation failed: %v", err)), nil
		}
		return mcp.NewToolResultText(answerText), nil
	}
}

func makeListProductsHandler(m *matcher.Matcher) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		brandFilter := strings.ToLower(req.GetString("brand", ""))

		var sb strings.Builder
		count := 0
		for _, e := range m.Entries() {
			if brandFilter != "" && strings.ToLower(e.Brand) != brandFilter {
				continue
			}
			count++
			fmt.Fprintf(&sb, "- **%s** — %s (model %s, %s)\n", e.ProductID, e.Title, e.Model, e.Brand)
		}

		header := fmt.Sprintf("## Products (%d)\n\n", count)
		if brandFilter != "" {
			header = fmt.Sprintf("## Products (%d, brand: %s)\n\n", count, brandFilter)
		}
		return mcp.NewToolResultText(header + sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatCandidates(candidates []matcher.Candidate) string {
	if len(candidates) == 0 {
		return "No matching products found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Candidates (%d)\n\n", len(candidates))
	for i, c := range candidates {
		fmt.Fprintf(&sb, "### %d. %s (`%s`) — score %.3f\n\n", i+1, c.Title, c.ProductID, c.Score)
		for _, ev := range c.Evidence {
			fmt.Fprintf(&sb, "- %s\n", ev)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatChunks(query string, chunks []chunker.Chunk) string {
	if len(chunks) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d passages)\n\n", query, len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(&sb, "### Passage %d: `%s` (%s)\n\n%s\n\n", i+1, c.Source, c.ProductID, c.Text)
	}
	return sb.String()
}
