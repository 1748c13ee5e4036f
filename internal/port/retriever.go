package port

import (
	"context"

	"docrag/internal/domain"
)

// Querier runs similarity queries against the index.
type Querier interface {
	// Query returns up to k chunks ranked by descending relevance.
	Query(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error)
}
