package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/retry"
)

// DefaultTopK is used when a query asks for k <= 0.
const DefaultTopK = 5

// Populate failure reasons.
const (
	ReasonResetFailed = "reset failed"
	ReasonNoDocuments = "no documents found"
	ReasonNoChunks    = "no chunks produced"
	ReasonAddFailed   = "add failed"
)

// ManagerConfig holds the locations and policies the Manager works with.
type ManagerConfig struct {
	DataDir     string
	StoreDir    string
	ClearPolicy retry.Policy
	OpenTimeout time.Duration
}

// Manager owns the persistent index and is the only component that writes
// to it. At most one populate runs at a time; queries share the store handle
// and never see it closed underneath them.
type Manager struct {
	cfg     ManagerConfig
	loader  port.DocumentLoader
	chunker port.Chunker
	gateway *embedding.Gateway
	cache   *cache.QueryCache
	fsys    store.FileSystem
	logger  *slog.Logger

	writeMu sync.Mutex

	handleMu sync.RWMutex
	handle   *store.BoltStore
}

// NewManager creates a Manager. The store is opened on first use.
func NewManager(
	cfg ManagerConfig,
	loader port.DocumentLoader,
	chunker port.Chunker,
	gateway *embedding.Gateway,
	queryCache *cache.QueryCache,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		loader:  loader,
		chunker: chunker,
		gateway: gateway,
		cache:   queryCache,
		fsys:    store.OSFileSystem{},
		logger:  logger,
	}
}

// SetFileSystem replaces the filesystem used by Clear.
func (m *Manager) SetFileSystem(fsys store.FileSystem) {
	m.fsys = fsys
}

// Populate rebuilds or extends the index from the data directory.
func (m *Manager) Populate(ctx context.Context, reset bool) domain.PopulateResult {
	return m.PopulateWithProgress(ctx, reset, nil)
}

// PopulateWithProgress is Populate with a callback invoked after every
// embedded batch.
func (m *Manager) PopulateWithProgress(ctx context.Context, reset bool, progress embedding.ProgressFunc) domain.PopulateResult {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	start := time.Now()
	fail := func(stage domain.Stage, reason string, err error) domain.PopulateResult {
		res := domain.PopulateResult{Stage: stage, Reason: reason}
		if err != nil {
			res.Detail = err.Error()
			res.Category = domain.CategoryOf(err)
		}
		m.logger.Error("populate failed", "stage", stage, "reason", reason, "error", err)
		return res
	}

	if reset {
		if err := m.clear(ctx); err != nil {
			return fail(domain.StageReset, ReasonResetFailed, err)
		}
	}

	docs, err := m.loader.Load(ctx, m.cfg.DataDir)
	if err != nil {
		// An unreadable data directory means nothing to load, like an empty one.
		return fail(domain.StageLoad, ReasonNoDocuments, fmt.Errorf("%w: %v", domain.ErrValidation, err))
	}
	if len(docs) == 0 {
		return fail(domain.StageLoad, ReasonNoDocuments, nil)
	}
	m.logger.Info("documents loaded", "count", len(docs), "dir", m.cfg.DataDir)

	chunks := m.chunker.Split(docs)
	if len(chunks) == 0 {
		return fail(domain.StageSplit, ReasonNoChunks, nil)
	}
	m.logger.Info("documents split", "chunks", len(chunks))

	if err := m.add(ctx, chunks, progress); err != nil {
		return fail(domain.StageAdd, ReasonAddFailed, err)
	}

	m.logger.Info("populate complete",
		"documents", len(docs), "chunks", len(chunks), "reset", reset, "elapsed", time.Since(start))

	return domain.PopulateResult{
		Success:       true,
		DocumentCount: len(docs),
		ChunkCount:    len(chunks),
	}
}

// Clear removes the persisted index and leaves an empty store directory.
func (m *Manager) Clear(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.clear(ctx)
}

func (m *Manager) clear(ctx context.Context) error {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.handle != nil {
		if err := m.handle.Close(); err != nil {
			m.logger.Warn("closing store before clear", "error", err)
		}
		m.handle = nil
	}

	err := store.ClearDir(ctx, m.fsys, m.cfg.StoreDir, m.cfg.ClearPolicy, m.logger)
	m.invalidate()
	if err != nil {
		return err
	}

	m.logger.Info("store cleared", "dir", m.cfg.StoreDir)
	return nil
}

// Add embeds and stores chunks. Nothing is written unless every chunk was
// embedded.
func (m *Manager) Add(ctx context.Context, chunks []domain.Chunk) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.add(ctx, chunks, nil)
}

func (m *Manager) add(ctx context.Context, chunks []domain.Chunk, progress embedding.ProgressFunc) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.gateway.EmbedDocuments(ctx, texts, progress)
	if err != nil {
		return err
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		meta := c.Metadata.Clone()
		meta.SourceInfo = domain.SourceInfo(meta.Source, meta.Page)
		entries[i] = domain.IndexEntry{
			ID:       c.ID,
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: meta,
		}
	}

	err = m.withStore(func(s *store.BoltStore) error {
		return s.Put(entries)
	})
	m.invalidate()
	return err
}

// Query embeds question and returns the k nearest chunks. An empty index
// yields an empty result.
func (m *Manager) Query(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	count, err := m.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []domain.ScoredChunk{}, nil
	}

	vector, err := m.gateway.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	var results []domain.ScoredChunk
	err = m.withStore(func(s *store.BoltStore) error {
		var err error
		results, err = s.Search(vector, k)
		return err
	})
	return results, err
}

// Count returns the number of index entries.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var n int
	err := m.withStore(func(s *store.BoltStore) error {
		var err error
		n, err = s.Count()
		return err
	})
	return n, err
}

// Compat reports whether the stored vectors match the active embedder.
func (m *Manager) Compat(ctx context.Context) (*store.CompatResult, error) {
	var res *store.CompatResult
	err := m.withStore(func(s *store.BoltStore) error {
		var err error
		res, err = s.CheckCompat(m.gateway.ModelName(), m.gateway.Dimension())
		return err
	})
	return res, err
}

// ProbeText is embedded by ProbeEmbedding.
const ProbeText = "This is a test document about ancient Egypt."

// ProbeEmbedding embeds a fixed sentence and returns the vector length.
func (m *Manager) ProbeEmbedding(ctx context.Context) (int, error) {
	vector, err := m.gateway.EmbedQuery(ctx, ProbeText)
	if err != nil {
		return 0, err
	}
	return len(vector), nil
}

// Close releases the store handle. The Manager reopens it on next use.
func (m *Manager) Close() error {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	return err
}

// withStore runs fn with an open handle under the shared lock.
func (m *Manager) withStore(fn func(s *store.BoltStore) error) error {
	for i := 0; i < 2; i++ {
		m.handleMu.RLock()
		if m.handle != nil {
			err := fn(m.handle)
			m.handleMu.RUnlock()
			return err
		}
		m.handleMu.RUnlock()

		if err := m.open(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: store closed while opening", domain.ErrStore)
}

func (m *Manager) open() error {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.handle != nil {
		return nil
	}
	s, err := store.Open(m.cfg.StoreDir, store.Options{
		Timeout: m.cfg.OpenTimeout,
		Model:   m.gateway.ModelName(),
	})
	if err != nil {
		return err
	}
	m.handle = s
	return nil
}

func (m *Manager) invalidate() {
	if m.cache != nil {
		m.cache.Invalidate()
	}
}
