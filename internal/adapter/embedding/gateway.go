package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// ProgressFunc is called after each embedded batch.
type ProgressFunc func(done, total int)

// Gateway fronts an Embedder with batching and a fixed output dimension.
// Every error it returns wraps domain.ErrEmbedding.
type Gateway struct {
	embedder  port.Embedder
	batchSize int

	mu        sync.Mutex
	dimension int
}

func NewGateway(embedder port.Embedder, batchSize int) *Gateway {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Gateway{
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// EmbedQuery embeds a single question.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query text", domain.ErrEmbedding)
	}
	vecs, err := g.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments embeds texts in batches, preserving order.
func (g *Gateway) EmbedDocuments(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += g.batchSize {
		end := i + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := g.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		out = append(out, vecs...)

		if progress != nil {
			progress(end, len(texts))
		}
	}

	return out, nil
}

// Dimension returns the vector length seen so far, 0 before the first call.
func (g *Gateway) Dimension() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dimension
}

func (g *Gateway) ModelName() string {
	return g.embedder.ModelName()
}

func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEmbedding, g.embedder.ModelName(), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbedding, len(texts), len(vecs))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, vec := range vecs {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty vector", domain.ErrEmbedding)
		}
		if g.dimension == 0 {
			g.dimension = len(vec)
		}
		if len(vec) != g.dimension {
			return nil, fmt.Errorf("%w: dimension changed from %d to %d", domain.ErrEmbedding, g.dimension, len(vec))
		}
	}
	return vecs, nil
}
