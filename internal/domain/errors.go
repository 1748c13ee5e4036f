package domain

import "errors"

// ErrorCategory is the machine-readable failure class exposed at the boundary.
type ErrorCategory string

const (
	CategoryValidation       ErrorCategory = "validation"
	CategoryStoreUnavailable ErrorCategory = "store-unavailable"
	CategoryEmbedding        ErrorCategory = "embedding-failure"
	CategoryGeneration       ErrorCategory = "generation-failure"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrStore      = errors.New("vector store unavailable")
	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("generation failed")
)

// CategoryOf maps an error chain onto a category. Unknown errors are store errors,
// since the store is the only other collaborator on the query path.
func CategoryOf(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrEmbedding):
		return CategoryEmbedding
	case errors.Is(err, ErrGeneration):
		return CategoryGeneration
	default:
		return CategoryStoreUnavailable
	}
}
