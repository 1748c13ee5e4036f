package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// stagePrefix marks files still being written into the data directory.
const stagePrefix = ".staged-"

// Source is one file to place in the data directory under Name.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// SaveAll writes every source into dir, or none of them. Each file is first
// written to a hidden temporary in dir and renamed into place only after all
// of them were written completely.
func SaveAll(dir string, sources []Source) error {
	staged := make([]string, 0, len(sources))
	cleanup := func() {
		for _, tmp := range staged {
			if tmp != "" {
				os.Remove(tmp)
			}
		}
	}

	for _, src := range sources {
		tmp, err := stage(dir, src)
		if tmp != "" {
			staged = append(staged, tmp)
		}
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to save %s: %w", src.Name, err)
		}
	}

	for i, tmp := range staged {
		if err := os.Rename(tmp, filepath.Join(dir, sources[i].Name)); err != nil {
			cleanup()
			return fmt.Errorf("failed to save %s: %w", sources[i].Name, err)
		}
		staged[i] = ""
	}
	return nil
}

func stage(dir string, src Source) (string, error) {
	in, err := src.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, stagePrefix+"*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return out.Name(), err
	}
	return out.Name(), out.Close()
}

func isStaged(name string) bool {
	return strings.HasPrefix(name, stagePrefix)
}
