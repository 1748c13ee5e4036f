package port

import (
	"context"
	"fmt"

	"docrag/internal/domain"
)

// DocumentLoader reads every supported file of a directory into documents.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]domain.Document, error)
}

// Record is raw parser output before the loader normalizes provenance.
type Record struct {
	Text    string
	Page    int
	HasPage bool
	Extra   map[string]string
}

// DocumentParser turns one file into records.
type DocumentParser interface {
	Parse(ctx context.Context, path string) ([]Record, error)

	// Extensions lists the lowercased extensions (without dot) handled by the parser.
	Extensions() []string
}

// PartialError is returned alongside records when parts of a file could not
// be read. Skipped holds the 1-based page numbers that were dropped.
type PartialError struct {
	Skipped []int
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("skipped %d page(s) %v: %v", len(e.Skipped), e.Skipped, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
