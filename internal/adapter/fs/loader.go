package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// ParserLookup resolves a parser for a file extension.
type ParserLookup interface {
	ForPath(path string) (port.DocumentParser, bool)
}

// Loader reads the files directly under a directory into documents.
type Loader struct {
	parsers ParserLookup
	marker  string
	ignore  []string
	logger  *slog.Logger
}

func NewLoader(parsers ParserLookup, marker string, ignore []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		parsers: parsers,
		marker:  marker,
		ignore:  ignore,
		logger:  logger,
	}
}

// Load parses every supported file in dir, in name order. A file whose parser
// fails is logged and skipped. An empty result is not an error.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var docs []domain.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if entry.IsDir() || l.shouldSkip(name) {
			continue
		}

		path := filepath.Join(dir, name)
		parser, ok := l.parsers.ForPath(path)
		if !ok {
			l.logger.Debug("skipping unsupported file", "file", name)
			continue
		}

		records, err := parser.Parse(ctx, path)
		var partial *port.PartialError
		switch {
		case errors.As(err, &partial):
			l.logger.Warn("skipped unreadable pages", "file", name, "pages", partial.Skipped, "error", partial.Err)
		case err != nil:
			l.logger.Warn("error loading file", "file", name, "error", err)
			continue
		}

		for _, rec := range records {
			page := 0
			if rec.HasPage {
				page = rec.Page
			}
			docs = append(docs, domain.Document{
				Text: rec.Text,
				Metadata: domain.Metadata{
					Source: name,
					Page:   page,
					Extra:  rec.Extra,
				},
			})
		}
		l.logger.Info("loaded file", "file", name, "records", len(records))
	}

	return docs, nil
}

func (l *Loader) shouldSkip(name string) bool {
	if name == l.marker || isStaged(name) {
		return true
	}
	for _, pattern := range l.ignore {
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// ValidateExtension rejects file names whose extension is not in allowed.
func ValidateExtension(name string, allowed map[string]struct{}) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return fmt.Errorf("%w: %q has no file extension", domain.ErrValidation, name)
	}
	if _, ok := allowed[ext]; !ok {
		return fmt.Errorf("%w: extension %q is not allowed", domain.ErrValidation, ext)
	}
	return nil
}

// SafeName reduces an uploaded file name to a base name that stays inside the data directory.
func SafeName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrValidation, name)
	}
	return base, nil
}

// EnsureDataDir creates dir and writes the marker README if it is missing.
func EnsureDataDir(dir, marker string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if marker == "" {
		return nil
	}
	path := filepath.Join(dir, marker)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("# Data Directory\n\nPlace your documents here.\n"), 0644)
}

// ListDocuments returns the names of files in dir, excluding the marker.
func ListDocuments(dir, marker string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == marker || isStaged(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
