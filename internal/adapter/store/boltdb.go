package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// IndexFile is the database file created inside the store directory.
const IndexFile = "index.db"

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")
)

// Options configures Open.
type Options struct {
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration
	// Model is recorded in the meta bucket on first write.
	Model string
}

// BoltStore persists index entries in bbolt and keeps an in-memory copy of
// every vector for brute-force search.
type BoltStore struct {
	db    *bbolt.DB
	model string

	mu        sync.RWMutex
	dimension int
	entries   map[string]domain.IndexEntry
}

var _ port.IndexStore = (*BoltStore)(nil)

type storedEntry struct {
	Vector   []float32       `json:"v"`
	Text     string          `json:"t"`
	Metadata domain.Metadata `json:"m"`
}

// Open opens or creates the index inside dir.
func Open(dir string, opts Options) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", domain.ErrStore, err)
	}

	db, err := bbolt.Open(filepath.Join(dir, IndexFile), 0600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %v", domain.ErrStore, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEntries, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return initSchema(tx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	s := &BoltStore{
		db:      db,
		model:   opts.Model,
		entries: make(map[string]domain.IndexEntry),
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: load entries: %v", domain.ErrStore, err)
	}

	return s, nil
}

func (s *BoltStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		info := readSchema(tx)
		s.dimension = info.Dimension

		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			s.entries[string(k)] = domain.IndexEntry{
				ID:       string(k),
				Vector:   stored.Vector,
				Text:     stored.Text,
				Metadata: stored.Metadata,
			}
			return nil
		})
	})
}

// Put writes all entries in one transaction. Either every entry is stored or
// none is. The first write fixes the index dimension.
func (s *BoltStore) Put(entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry without id", domain.ErrStore)
		}
		if len(e.Vector) != dim || dim == 0 {
			return fmt.Errorf("%w: vector dimension mismatch: expected %d, got %d", domain.ErrStore, dim, len(e.Vector))
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		for _, e := range entries {
			data, err := json.Marshal(storedEntry{
				Vector:   e.Vector,
				Text:     e.Text,
				Metadata: e.Metadata,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(e.ID), data); err != nil {
				return err
			}
		}
		if s.dimension == 0 {
			return writeSchema(tx, SchemaInfo{
				Version:   CurrentSchemaVersion,
				Dimension: dim,
				Model:     s.model,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write entries: %v", domain.ErrStore, err)
	}

	// Memory follows the committed transaction only.
	s.dimension = dim
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

// Search finds the k entries nearest to vector by cosine similarity, highest
// first. Equal scores are ordered by ID.
func (s *BoltStore) Search(vector []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 || k <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d", domain.ErrStore, s.dimension, len(vector))
	}

	scores := make([]domain.ScoredChunk, 0, len(s.entries))
	for id, entry := range s.entries {
		scores = append(scores, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:       id,
				Text:     entry.Text,
				Metadata: entry.Metadata.Clone(),
			},
			Score: cosineSimilarity(vector, entry.Vector),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Count returns the number of stored entries.
func (s *BoltStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Dimension returns the index dimension, 0 while nothing has been written.
func (s *BoltStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Close releases the file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
