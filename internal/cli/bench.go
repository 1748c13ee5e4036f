package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var benchTopK int

var benchCmd = &cobra.Command{
	Use:   "bench <query>",
	Short: "Check retrieval quality for a query",
	Long: `Embed a query, search the index and rate the similarity of each match.
Useful after changing the embedding model or chunk settings.

Examples:
  docrag bench "Which animals are mammals?" -k 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVarP(&benchTopK, "top-k", "k", 10, "number of results")
}

func runBench(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	a, err := buildApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.manager.Count(cmd.Context())
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no embeddings - run 'docrag populate' first")
	}
	probeLen, err := a.manager.ProbeEmbedding(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Embeddings indexed: %d\n", count)
	fmt.Printf("Model: %s (%s)\n", a.cfg.Embedding.Model, a.cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", probeLen)
	fmt.Println()

	fmt.Printf("Query: %q\n", query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	results, err := a.manager.Query(cmd.Context(), query, benchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	elapsed := time.Since(start)
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Top %d matches in %s:\n\n", len(results), elapsed.Round(time.Millisecond))

	totalScore := 0.0
	for i, r := range results {
		preview := r.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		totalScore += r.Score

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(r.Score), r.Score, r.Metadata.Citation())
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	switch {
	case avgScore > 0.5:
		fmt.Println("  Status: GOOD - retrieval working well")
	case avgScore > 0.3:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - may need better embeddings or a reset populate")
	}
	return nil
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}
