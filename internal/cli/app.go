package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/parser"
	"docrag/internal/adapter/retriever"
	"docrag/internal/logging"
	"docrag/internal/port"
	"docrag/internal/retry"
	"docrag/internal/usecase"
)

// app is the wired pipeline shared by the commands.
type app struct {
	cfg     *config.Config
	root    string
	logger  *slog.Logger
	logs    io.Closer
	cache   *cache.QueryCache
	manager *usecase.Manager
}

// buildApp wires loader, chunker, embedder, store and cache from cfg.
// The generation backend is wired separately by answerer, since only some
// commands need it.
func buildApp(cfg *config.Config, root string) (*app, error) {
	logger, logs, err := logging.New(cfg.Logging.Level, cfg.LogFile(root))
	if err != nil {
		return nil, err
	}

	registry := parser.DefaultRegistry().Restrict(cfg.AllowedExtensions())
	loader := fs.NewLoader(registry, cfg.Loader.MarkerFile, cfg.Loader.Ignore, logger)

	ch, err := chunker.NewRecursiveChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		logs.Close()
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		logs.Close()
		return nil, err
	}

	var queryCache *cache.QueryCache
	if cfg.Retrieve.CacheSize > 0 {
		queryCache = cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.CacheTTL())
	}

	manager := usecase.NewManager(usecase.ManagerConfig{
		DataDir:  cfg.DataDir(root),
		StoreDir: cfg.StoreDir(root),
		ClearPolicy: retry.Policy{
			MaxAttempts: cfg.Store.ClearAttempts,
			Delay:       cfg.ClearBackoff(),
		},
		OpenTimeout: cfg.OpenTimeout(),
	}, loader, ch, embedding.NewGateway(embedder, cfg.Embedding.BatchSize), queryCache, logger)

	logger.Debug("pipeline ready",
		"embedding", embedder.ModelName(), "data_dir", cfg.DataDir(root), "store_dir", cfg.StoreDir(root))

	return &app{
		cfg:     cfg,
		root:    root,
		logger:  logger,
		logs:    logs,
		cache:   queryCache,
		manager: manager,
	}, nil
}

// answerer builds the Answerer, running the generation self-test unless disabled.
func (a *app) answerer(ctx context.Context) (*usecase.Answerer, error) {
	generator, err := newGenerator(a.cfg)
	if err != nil {
		return nil, err
	}

	var querier port.Querier = a.manager
	if a.cache != nil {
		querier = cache.NewCachedQuerier(a.manager, a.cache)
	}

	var reranker *retriever.MMRReranker
	if a.cfg.Retrieve.MMRLambda > 0 {
		reranker = retriever.NewMMRReranker(a.cfg.Retrieve.MMRLambda, a.cfg.Retrieve.DedupJaccard)
	}

	return usecase.NewAnswerer(ctx, querier, generator, usecase.AnswererOptions{
		TopK:           a.cfg.Retrieve.TopK,
		Timeout:        a.cfg.GenerationTimeout(),
		SkipSelfTest:   a.cfg.Generation.SkipSelfTest,
		PromptTemplate: a.cfg.Generation.PromptTemplate,
		Reranker:       reranker,
		Logger:         a.logger,
	})
}

func (a *app) Close() error {
	err := a.manager.Close()
	if cerr := a.logs.Close(); err == nil {
		err = cerr
	}
	return err
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai", "ollama", "":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			Timeout:   cfg.EmbeddingTimeout(),
		})
	case "hash":
		return embedding.NewHashEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func newGenerator(cfg *config.Config) (port.Generator, error) {
	switch cfg.Generation.Provider {
	case "openai", "ollama", "":
		return llm.NewOpenAIGenerator(llm.OpenAIConfig{
			Model:       cfg.Generation.Model,
			BaseURL:     cfg.Generation.BaseURL,
			APIKeyEnv:   cfg.Generation.APIKeyEnv,
			Temperature: cfg.Generation.Temperature,
			Timeout:     cfg.GenerationTimeout(),
		})
	case "echo":
		return llm.NewEchoGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Generation.Provider)
	}
}
