package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
)

type fakeGenerator struct {
	response string
	err      error
	delay    time.Duration
	prompts  []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *fakeGenerator) ModelName() string { return "fake" }

type fakeQuerier struct {
	results []domain.ScoredChunk
	err     error
	calls   int
	lastK   int
}

func (q *fakeQuerier) Query(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	q.calls++
	q.lastK = k
	if q.err != nil {
		return nil, q.err
	}
	return q.results, nil
}

func result(id, text, source string, page int, sourceInfo string) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ID:   id,
			Text: text,
			Metadata: domain.Metadata{
				Source:     source,
				Page:       page,
				SourceInfo: sourceInfo,
			},
		},
		Score: 1,
	}
}

func newAnswerer(t *testing.T, q *fakeQuerier, g *fakeGenerator, opts AnswererOptions) *Answerer {
	t.Helper()
	opts.SkipSelfTest = true
	opts.Logger = quietLogger()
	a, err := NewAnswerer(context.Background(), q, g, opts)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewAnswerer_SelfTestFailureIsFatal(t *testing.T) {
	g := &fakeGenerator{err: errors.New("connection refused")}

	_, err := NewAnswerer(context.Background(), &fakeQuerier{}, g, AnswererOptions{Timeout: time.Second, Logger: quietLogger()})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected generation error, got %v", err)
	}
	if len(g.prompts) != 1 || g.prompts[0] != llm.SelfTestPrompt {
		t.Errorf("expected one self-test prompt, got %v", g.prompts)
	}
}

func TestNewAnswerer_SelfTestTimeout(t *testing.T) {
	g := &fakeGenerator{response: "ok", delay: time.Second}

	_, err := NewAnswerer(context.Background(), &fakeQuerier{}, g, AnswererOptions{
		SelfTestTimeout: 20 * time.Millisecond,
		Logger:          quietLogger(),
	})
	if err == nil {
		t.Error("expected self-test timeout to fail")
	}
}

func TestNewAnswerer_InvalidTemplate(t *testing.T) {
	_, err := NewAnswerer(context.Background(), &fakeQuerier{}, &fakeGenerator{}, AnswererOptions{
		PromptTemplate: "{{.Context",
		SkipSelfTest:   true,
	})
	if err == nil {
		t.Error("expected template parse error")
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	q := &fakeQuerier{}
	a := newAnswerer(t, q, &fakeGenerator{response: "x"}, AnswererOptions{})

	for _, question := range []string{"", "   ", "\n\t"} {
		ans := a.Answer(context.Background(), question)
		if ans.Category != domain.CategoryValidation {
			t.Errorf("question %q: expected validation category, got %q", question, ans.Category)
		}
		if !strings.HasPrefix(ans.Response, "Error:") || len(ans.Sources) != 0 {
			t.Errorf("unexpected answer %+v", ans)
		}
	}
	if q.calls != 0 {
		t.Errorf("validation failures must not reach the store, got %d queries", q.calls)
	}
}

func TestAnswer_NoResults(t *testing.T) {
	g := &fakeGenerator{response: "x"}
	a := newAnswerer(t, &fakeQuerier{}, g, AnswererOptions{})

	ans := a.Answer(context.Background(), "What are cats?")
	if ans.Response != NoResultsResponse || ans.Failed() {
		t.Errorf("unexpected answer %+v", ans)
	}
	if ans.Sources == nil || len(ans.Sources) != 0 {
		t.Errorf("expected empty non-nil sources, got %v", ans.Sources)
	}
	if len(g.prompts) != 0 {
		t.Error("generator should not be called without context")
	}
}

func TestAnswer_PromptAndSources(t *testing.T) {
	q := &fakeQuerier{results: []domain.ScoredChunk{
		result("1", "Cats are mammals.", "doc1.txt", 0, "doc1.txt (page 1)"),
		result("2", "Cats purr.", "doc1.txt", 0, "doc1.txt (page 1)"),
		result("3", "Some cats are orange.", "cats.pdf", 2, ""),
	}}
	g := &fakeGenerator{response: "Cats are mammals that purr."}
	a := newAnswerer(t, q, g, AnswererOptions{TopK: 3})

	ans := a.Answer(context.Background(), "  What are cats?  ")
	if ans.Failed() {
		t.Fatalf("unexpected failure %+v", ans)
	}
	if ans.Response != "Cats are mammals that purr." {
		t.Errorf("unexpected response %q", ans.Response)
	}

	want := []string{"cats.pdf (page 3)", "doc1.txt (page 1)"}
	if fmt.Sprint(ans.Sources) != fmt.Sprint(want) {
		t.Errorf("expected sources %v, got %v", want, ans.Sources)
	}

	prompt := g.prompts[0]
	wantContext := "Cats are mammals." + ContextSeparator + "Cats purr." + ContextSeparator + "Some cats are orange."
	if !strings.Contains(prompt, wantContext) {
		t.Errorf("context not joined in rank order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Question: What are cats?") {
		t.Errorf("question missing from prompt:\n%s", prompt)
	}
	if q.lastK != 3 {
		t.Errorf("expected k=3, got %d", q.lastK)
	}
}

func TestAnswer_CustomTemplate(t *testing.T) {
	q := &fakeQuerier{results: []domain.ScoredChunk{result("1", "ctx", "a.txt", 0, "")}}
	g := &fakeGenerator{response: "ok"}
	a := newAnswerer(t, q, g, AnswererOptions{PromptTemplate: "Q={{.Question}} C={{.Context}}"})

	a.Answer(context.Background(), "why")
	if g.prompts[0] != "Q=why C=ctx" {
		t.Errorf("unexpected prompt %q", g.prompts[0])
	}
}

func TestAnswer_FailureCategories(t *testing.T) {
	hit := []domain.ScoredChunk{result("1", "ctx", "a.txt", 0, "")}

	tests := []struct {
		name     string
		querier  *fakeQuerier
		gen      *fakeGenerator
		timeout  time.Duration
		category domain.ErrorCategory
	}{
		{
			name:     "store unavailable",
			querier:  &fakeQuerier{err: fmt.Errorf("%w: locked", domain.ErrStore)},
			gen:      &fakeGenerator{response: "x"},
			category: domain.CategoryStoreUnavailable,
		},
		{
			name:     "embedding failure",
			querier:  &fakeQuerier{err: fmt.Errorf("%w: down", domain.ErrEmbedding)},
			gen:      &fakeGenerator{response: "x"},
			category: domain.CategoryEmbedding,
		},
		{
			name:     "generation error",
			querier:  &fakeQuerier{results: hit},
			gen:      &fakeGenerator{err: errors.New("model not loaded")},
			category: domain.CategoryGeneration,
		},
		{
			name:     "generation timeout",
			querier:  &fakeQuerier{results: hit},
			gen:      &fakeGenerator{response: "late", delay: time.Second},
			timeout:  20 * time.Millisecond,
			category: domain.CategoryGeneration,
		},
		{
			name:     "empty generation",
			querier:  &fakeQuerier{results: hit},
			gen:      &fakeGenerator{response: "  "},
			category: domain.CategoryGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAnswerer(t, tt.querier, tt.gen, AnswererOptions{Timeout: tt.timeout})

			start := time.Now()
			ans := a.Answer(context.Background(), "question")
			if ans.Category != tt.category {
				t.Errorf("expected category %q, got %q (%s)", tt.category, ans.Category, ans.Response)
			}
			if !strings.HasPrefix(ans.Response, "Error: ") {
				t.Errorf("expected error response, got %q", ans.Response)
			}
			if len(ans.Sources) != 0 {
				t.Errorf("failures carry no sources, got %v", ans.Sources)
			}
			if time.Since(start) > 500*time.Millisecond {
				t.Error("answer was not bounded by the generation timeout")
			}
		})
	}
}

func TestAnswer_RerankerWidensCandidates(t *testing.T) {
	q := &fakeQuerier{results: []domain.ScoredChunk{
		result("1", "cats are small mammals", "a.txt", 0, ""),
		result("2", "cats are small mammals", "b.txt", 0, ""),
		result("3", "dogs bark", "c.txt", 0, ""),
	}}
	g := &fakeGenerator{response: "ok"}
	a := newAnswerer(t, q, g, AnswererOptions{TopK: 2, Reranker: retriever.NewMMRReranker(0.5, 0.8)})

	ans := a.Answer(context.Background(), "cats")
	if q.lastK != 4 {
		t.Errorf("expected 2*k candidates, got k=%d", q.lastK)
	}
	want := []string{"a.txt (page 1)", "c.txt (page 1)"}
	if fmt.Sprint(ans.Sources) != fmt.Sprint(want) {
		t.Errorf("expected duplicate chunk dropped, sources %v", ans.Sources)
	}
}

func TestAnswer_MammalsScenario(t *testing.T) {
	env := newTestEnv(t, mammals)
	ctx := context.Background()

	if res := env.manager.Populate(ctx, true); !res.Success {
		t.Fatalf("populate failed: %+v", res)
	}

	a, err := NewAnswerer(ctx, env.manager, llm.NewEchoGenerator(), AnswererOptions{
		Timeout: 5 * time.Second,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ans := a.Answer(ctx, "What are cats?")
	if ans.Failed() || strings.TrimSpace(ans.Response) == "" {
		t.Fatalf("unexpected answer %+v", ans)
	}
	found := false
	for _, s := range ans.Sources {
		if s == "doc1.txt (page 1)" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected doc1.txt (page 1) in sources, got %v", ans.Sources)
	}
}

func TestAnswer_EmptyStoreScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if err := env.manager.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	a, err := NewAnswerer(ctx, env.manager, llm.NewEchoGenerator(), AnswererOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	ans := a.Answer(ctx, "What are cats?")
	if ans.Response != NoResultsResponse || len(ans.Sources) != 0 {
		t.Errorf("unexpected answer %+v", ans)
	}
}

func TestSources_FallbackAndDedupe(t *testing.T) {
	sources := Sources([]domain.ScoredChunk{
		result("1", "", "b.txt", 1, ""),
		result("2", "", "", 0, ""),
		result("3", "", "b.txt", 1, "b.txt (page 2)"),
	})

	want := []string{"b.txt (page 2)", "unknown (page 1)"}
	if fmt.Sprint(sources) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, sources)
	}
}
