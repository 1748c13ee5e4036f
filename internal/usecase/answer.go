package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"
	"time"

	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
	"docrag/internal/port"
)

//go:embed prompt.tmpl
var defaultPrompt string

// ContextSeparator joins retrieved chunks in the prompt.
const ContextSeparator = "\n\n---\n\n"

// NoResultsResponse is returned when retrieval finds nothing.
const NoResultsResponse = "No relevant information found"

// AnswererOptions configures an Answerer.
type AnswererOptions struct {
	TopK            int
	Timeout         time.Duration // Bound on one generation call
	SelfTestTimeout time.Duration
	SkipSelfTest    bool
	PromptTemplate  string // Empty uses the built-in prompt
	Reranker        *retriever.MMRReranker
	Logger          *slog.Logger
}

// Answerer turns a question into a grounded answer with citations. It never
// returns an error from Answer; failures become an Answer with a category.
type Answerer struct {
	querier   port.Querier
	generator port.Generator
	prompt    *template.Template
	opts      AnswererOptions
	logger    *slog.Logger
}

type promptData struct {
	Context  string
	Question string
}

// NewAnswerer checks that the generation backend responds before returning.
func NewAnswerer(ctx context.Context, querier port.Querier, generator port.Generator, opts AnswererOptions) (*Answerer, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.SelfTestTimeout <= 0 {
		opts.SelfTestTimeout = opts.Timeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	text := opts.PromptTemplate
	if text == "" {
		text = defaultPrompt
	}
	prompt, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	if !opts.SkipSelfTest {
		if err := llm.SelfTest(ctx, generator, opts.SelfTestTimeout); err != nil {
			return nil, err
		}
		logger.Info("generation backend ready", "model", generator.ModelName())
	}

	return &Answerer{
		querier:   querier,
		generator: generator,
		prompt:    prompt,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Answer retrieves context for question and asks the generation backend.
func (a *Answerer) Answer(ctx context.Context, question string) domain.Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return failure(fmt.Errorf("%w: question must not be empty", domain.ErrValidation))
	}

	start := time.Now()
	results, err := a.retrieve(ctx, question)
	if err != nil {
		a.logger.Error("retrieval failed", "error", err)
		return failure(err)
	}
	if len(results) == 0 {
		return domain.Answer{Response: NoResultsResponse, Sources: []string{}}
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}

	var prompt strings.Builder
	err = a.prompt.Execute(&prompt, promptData{
		Context:  strings.Join(texts, ContextSeparator),
		Question: question,
	})
	if err != nil {
		return failure(fmt.Errorf("%w: render prompt: %v", domain.ErrGeneration, err))
	}

	response, err := a.generate(ctx, prompt.String())
	if err != nil {
		a.logger.Error("generation failed", "model", a.generator.ModelName(), "error", err)
		return failure(err)
	}

	a.logger.Info("question answered",
		"chunks", len(results), "elapsed", time.Since(start))

	return domain.Answer{
		Response: response,
		Sources:  Sources(results),
	}
}

func (a *Answerer) retrieve(ctx context.Context, question string) ([]domain.ScoredChunk, error) {
	if a.opts.Reranker == nil {
		return a.querier.Query(ctx, question, a.opts.TopK)
	}

	candidates, err := a.querier.Query(ctx, question, a.opts.TopK*2)
	if err != nil {
		return nil, err
	}
	return a.opts.Reranker.Rerank(candidates, a.opts.TopK), nil
}

func (a *Answerer) generate(ctx context.Context, prompt string) (string, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	response, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if strings.TrimSpace(response) == "" {
		return "", fmt.Errorf("%w: empty response from %s", domain.ErrGeneration, a.generator.ModelName())
	}
	return response, nil
}

// Sources returns the distinct citations of results in sorted order.
func Sources(results []domain.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		citation := r.Metadata.Citation()
		if _, ok := seen[citation]; ok {
			continue
		}
		seen[citation] = struct{}{}
		sources = append(sources, citation)
	}
	sort.Strings(sources)
	return sources
}

func failure(err error) domain.Answer {
	return domain.Answer{
		Response: "Error: " + err.Error(),
		Sources:  []string{},
		Category: domain.CategoryOf(err),
	}
}
