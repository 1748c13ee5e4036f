package retriever

import (
	"testing"

	"docrag/internal/domain"
)

func scored(id, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{ID: id, Text: text},
		Score: score,
	}
}

func TestMMRReranking(t *testing.T) {
	reranker := NewMMRReranker(0.5, 0.9)

	candidates := []domain.ScoredChunk{
		scored("c1", "invoice payment terms net thirty", 1.0),
		scored("c2", "invoice payment terms net sixty", 0.9),
		scored("c3", "warehouse inventory shipping schedule", 0.8),
		scored("c4", "invoice reminder letter template", 0.7),
	}

	results := reranker.Rerank(candidates, 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("expected c1 as first result, got %s", results[0].Chunk.ID)
	}

	c3Idx, c2Idx := -1, -1
	for i, r := range results {
		switch r.Chunk.ID {
		case "c3":
			c3Idx = i
		case "c2":
			c2Idx = i
		}
	}
	if c3Idx == -1 {
		t.Error("expected the diverse chunk c3 to be selected")
	}
	if c2Idx != -1 && c2Idx < c3Idx {
		t.Error("expected c3 to be promoted above the near-duplicate c2")
	}
}

func TestMMRDeduplication(t *testing.T) {
	reranker := NewMMRReranker(0.5, 0.8)

	candidates := []domain.ScoredChunk{
		scored("c1", "cats are small mammals", 1.0),
		scored("c2", "Cats are small mammals.", 0.99),
		scored("c3", "dogs bark loudly", 0.5),
	}

	results := reranker.Rerank(candidates, 3)
	for _, r := range results {
		if r.Chunk.ID == "c2" {
			t.Error("identical chunk c2 should be dropped")
		}
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestMMRNegativeScores(t *testing.T) {
	reranker := NewMMRReranker(1.0, 1.0)

	candidates := []domain.ScoredChunk{
		scored("a", "alpha", -0.1),
		scored("b", "bravo", -0.5),
		scored("c", "charlie", -0.3),
	}

	results := reranker.Rerank(candidates, 3)
	if len(results) != 3 || results[0].ID != "a" || results[1].ID != "c" || results[2].ID != "b" {
		t.Errorf("pure relevance should keep score order, got %v", results)
	}
}

func TestMMREmpty(t *testing.T) {
	reranker := NewMMRReranker(0.7, 0.9)

	if results := reranker.Rerank(nil, 5); len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		a, b     []string
		expected float64
	}{
		{[]string{"a", "b", "c"}, []string{"a", "b", "c"}, 1.0},
		{[]string{"a", "b"}, []string{"c", "d"}, 0.0},
		{[]string{"a", "b", "c"}, []string{"b", "c", "d"}, 0.5},
		{[]string{}, []string{}, 1.0},
		{[]string{"a"}, []string{}, 0.0},
	}

	for _, tt := range tests {
		if got := jaccardSimilarity(tt.a, tt.b); got != tt.expected {
			t.Errorf("jaccardSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.expected)
		}
	}
}
