package port

import "docrag/internal/domain"

// IndexStore persists index entries and answers nearest-neighbour queries.
type IndexStore interface {
	// Put writes all entries atomically.
	Put(entries []domain.IndexEntry) error

	// Search finds the k entries most similar to vector, highest score first.
	Search(vector []float32, k int) ([]domain.ScoredChunk, error)

	// Count returns the number of stored entries.
	Count() (int, error)

	// Dimension returns the vector dimension of the index, 0 while it is empty.
	Dimension() int

	Close() error
}
