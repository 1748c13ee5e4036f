package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ""},
		{fmt.Errorf("%w: empty question", ErrValidation), CategoryValidation},
		{fmt.Errorf("query: %w", fmt.Errorf("%w: timeout", ErrEmbedding)), CategoryEmbedding},
		{fmt.Errorf("%w: context deadline exceeded", ErrGeneration), CategoryGeneration},
		{fmt.Errorf("%w: closed", ErrStore), CategoryStoreUnavailable},
		{errors.New("boom"), CategoryStoreUnavailable},
	}

	for _, tt := range tests {
		if got := CategoryOf(tt.err); got != tt.want {
			t.Errorf("CategoryOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSourceInfo(t *testing.T) {
	if got := SourceInfo("doc1.txt", 0); got != "doc1.txt (page 1)" {
		t.Errorf("unexpected source info: %s", got)
	}
	if got := SourceInfo("", 4); got != "unknown (page 5)" {
		t.Errorf("unexpected source info: %s", got)
	}

	m := Metadata{Source: "a.pdf", Page: 2}
	if m.Citation() != "a.pdf (page 3)" {
		t.Errorf("expected derived citation, got %s", m.Citation())
	}
	m.SourceInfo = "custom"
	if m.Citation() != "custom" {
		t.Errorf("expected stored citation, got %s", m.Citation())
	}
}

func TestMetadataCloneDoesNotShareExtra(t *testing.T) {
	m := Metadata{Source: "a.csv", Extra: map[string]string{"row": "1"}}
	c := m.Clone()
	c.Extra["row"] = "2"
	if m.Extra["row"] != "1" {
		t.Error("clone shares Extra map with original")
	}
}
