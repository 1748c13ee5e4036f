package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryTopK         int
	queryJSON         bool
	queryRetrieveOnly bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the chunks most similar to the question and ask the language
model to answer from them. Sources are listed as "file (page N)".

Examples:
  docrag query "What are cats?"
  docrag query "What are cats?" --json
  docrag query "mammals" --retrieve-only -k 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryRetrieveOnly, "retrieve-only", false, "print retrieved chunks without generating an answer")
}

type chunkResult struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if queryTopK > 0 {
		cfg.Retrieve.TopK = queryTopK
	}
	question := strings.Join(args, " ")

	a, err := buildApp(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	if queryRetrieveOnly {
		return printChunks(cmd, a, question)
	}

	answerer, err := a.answerer(cmd.Context())
	if err != nil {
		return err
	}
	answer := answerer.Answer(cmd.Context(), question)

	if queryJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Println(answer.Response)
		if len(answer.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for _, s := range answer.Sources {
				fmt.Printf("  - %s\n", s)
			}
		}
	}

	if answer.Failed() {
		return fmt.Errorf("query failed: %s", answer.Category)
	}
	return nil
}

func printChunks(cmd *cobra.Command, a *app, question string) error {
	chunks, err := a.manager.Query(cmd.Context(), question, a.cfg.Retrieve.TopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]chunkResult, len(chunks))
	for i, c := range chunks {
		results[i] = chunkResult{Source: c.Metadata.Citation(), Score: c.Score, Text: c.Text}
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), question)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, r.Source, r.Score)
		// Truncate long text for display
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
