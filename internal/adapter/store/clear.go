package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"docrag/internal/domain"
	"docrag/internal/retry"
)

// FileSystem is the subset of filesystem calls ClearDir needs.
type FileSystem interface {
	RemoveAll(path string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(path string) ([]os.DirEntry, error)
}

// OSFileSystem is FileSystem backed by package os.
type OSFileSystem struct{}

func (OSFileSystem) RemoveAll(path string) error                  { return os.RemoveAll(path) }
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) ReadDir(path string) ([]os.DirEntry, error)   { return os.ReadDir(path) }

// ClearDir removes dir and recreates it empty, retrying under policy. It
// succeeds only when the directory exists and is empty afterwards.
func ClearDir(ctx context.Context, fsys FileSystem, dir string, policy retry.Policy, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	err := retry.Do(ctx, policy, func(attempt int) error {
		if err := fsys.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("recreate %s: %w", dir, err)
		}

		left, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("verify %s: %w", dir, err)
		}
		if len(left) > 0 {
			return fmt.Errorf("%s still holds %d entries", dir, len(left))
		}
		return nil
	}, func(attempt int, err error) {
		logger.Warn("clearing store directory failed, retrying",
			"dir", dir, "attempt", attempt, "error", err)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return nil
}
