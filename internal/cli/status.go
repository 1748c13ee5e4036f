package cli

import (
	"fmt"
	"os"

	"docrag/internal/adapter/fs"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents in the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		files, err := fs.ListDocuments(cfg.DataDir(GetRootDir()), cfg.Loader.MarkerFile)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index size and embedding compatibility",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.manager.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	compat, err := a.manager.Compat(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Data directory:  %s\n", a.cfg.DataDir(a.root))
	fmt.Printf("Index directory: %s\n", a.cfg.StoreDir(a.root))
	fmt.Printf("Entries:         %d\n", count)
	if compat.Stored.Model != "" {
		fmt.Printf("Indexed with:    %s (dimension %d, schema v%d)\n",
			compat.Stored.Model, compat.Stored.Dimension, compat.Stored.Version)
	}
	if compat.NeedsRebuild {
		fmt.Printf("Rebuild needed:  %s. Run 'docrag populate --reset'\n", compat.Reason)
	}
	return nil
}
