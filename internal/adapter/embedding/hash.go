package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"docrag/internal/adapter/analyzer"
)

// HashEmbedder maps tokenizer features into a fixed number of buckets with a
// signed hash and L2-normalizes the result. It needs no model server, and
// texts sharing words land close together.
type HashEmbedder struct {
	tokenizer *analyzer.Tokenizer
	dimension int
}

func NewHashEmbedder(dimension int) (*HashEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("hash embedding dimension must be positive, got %d", dimension)
	}
	return &HashEmbedder{
		tokenizer: analyzer.NewTokenizer(),
		dimension: dimension,
	}, nil
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)

	for _, feature := range e.tokenizer.Features(text) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dimension))
		weight := float32(1)
		if feature[0] == 'c' {
			weight = 0.5
		}
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vec[bucket] += weight
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("hash-%d", e.dimension)
}
