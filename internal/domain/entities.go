package domain

import "fmt"

// Metadata is the provenance carried by documents, chunks and index entries.
type Metadata struct {
	Source     string            `json:"source"`
	Page       int               `json:"page"`
	SourceInfo string            `json:"source_info,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Document is one logical page or record read from a source file.
type Document struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded-length slice of a Document and the unit of retrieval.
type Chunk struct {
	ID       string
	Text     string
	Metadata Metadata
}

// ScoredChunk is a chunk returned by a similarity query. Higher Score is more relevant.
type ScoredChunk struct {
	Chunk
	Score float64
}

// IndexEntry is a chunk with its embedding as persisted in the store.
type IndexEntry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// Answer is the outcome of a question. Category is empty on success.
type Answer struct {
	Response string        `json:"response"`
	Sources  []string      `json:"sources"`
	Category ErrorCategory `json:"category,omitempty"`
}

// Failed reports whether the answer carries an error category.
func (a Answer) Failed() bool {
	return a.Category != ""
}

// Stage names the populate step that failed.
type Stage string

const (
	StageReset Stage = "reset"
	StageLoad  Stage = "load"
	StageSplit Stage = "split"
	StageAdd   Stage = "add"
)

// PopulateResult is the outcome of one population run.
type PopulateResult struct {
	Success       bool          `json:"success"`
	DocumentCount int           `json:"document_count"`
	ChunkCount    int           `json:"chunk_count"`
	Stage         Stage         `json:"stage,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Category      ErrorCategory `json:"category,omitempty"` // Set when the failure came from an error
	Detail        string        `json:"detail,omitempty"`   // Underlying error, for logs and diagnostics
}

// SourceInfo renders the human-readable citation for a source file and 0-based page.
func SourceInfo(source string, page int) string {
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s (page %d)", source, page+1)
}

// Citation returns the stored citation, deriving it from source and page when absent.
func (m Metadata) Citation() string {
	if m.SourceInfo != "" {
		return m.SourceInfo
	}
	return SourceInfo(m.Source, m.Page)
}

// Clone returns a copy whose Extra map is not shared with m.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
