package port

import "docrag/internal/domain"

type Chunker interface {
	Split(docs []domain.Document) []domain.Chunk
}
