package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var populateReset bool

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Load, chunk and embed documents into the index",
	Long: `Load every document in the data directory, split it into chunks and add
the embedded chunks to the vector index. Re-running without --reset replaces
chunks with the same source, page and position.

Examples:
  docrag populate           # Add or update chunks
  docrag populate --reset   # Clear the index first`,
	Args: cobra.NoArgs,
	RunE: runPopulate,
}

func init() {
	rootCmd.AddCommand(populateCmd)
	populateCmd.Flags().BoolVar(&populateReset, "reset", false, "clear the index before populating")
}

func runPopulate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
		if done > 0 && done < total {
			eta := time.Duration(float64(time.Since(start)) / float64(done) * float64(total-done))
			bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
		}
	}

	res := a.manager.PopulateWithProgress(cmd.Context(), populateReset, progress)
	if !res.Success {
		if res.Detail != "" {
			return fmt.Errorf("populate failed at %s: %s: %s", res.Stage, res.Reason, res.Detail)
		}
		return fmt.Errorf("populate failed at %s: %s", res.Stage, res.Reason)
	}

	fmt.Printf("Populated %d chunks from %d documents in %s\n",
		res.ChunkCount, res.DocumentCount, formatDuration(time.Since(start)))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
