package cli

import (
	"fmt"
	"io"
	"os"

	"docrag/internal/adapter/fs"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <files...>",
	Short: "Copy documents into the data directory",
	Long: `Copy documents into the data directory. Every file is checked against the
allowed extensions before anything is copied. Run populate afterwards.

Examples:
  docrag add report.pdf notes.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := cfg.DataDir(GetRootDir())

	copied, err := copyIntoDataDir(args, dataDir, cfg.Loader.MarkerFile, cfg.AllowedExtensions())
	if err != nil {
		return err
	}
	for _, name := range copied {
		fmt.Printf("Added %s\n", name)
	}
	fmt.Printf("%d files added to %s\n", len(copied), dataDir)
	return nil
}

// copyIntoDataDir validates every path before copying any of them.
func copyIntoDataDir(paths []string, dataDir, marker string, allowed map[string]struct{}) ([]string, error) {
	names := make([]string, len(paths))
	for i, p := range paths {
		name, err := fs.SafeName(p)
		if err != nil {
			return nil, err
		}
		if err := fs.ValidateExtension(name, allowed); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		names[i] = name
	}

	if err := fs.EnsureDataDir(dataDir, marker); err != nil {
		return nil, err
	}
	sources := make([]fs.Source, len(paths))
	for i, p := range paths {
		sources[i] = fs.Source{Name: names[i], Open: func() (io.ReadCloser, error) { return os.Open(p) }}
	}
	if err := fs.SaveAll(dataDir, sources); err != nil {
		return nil, err
	}
	return names, nil
}
