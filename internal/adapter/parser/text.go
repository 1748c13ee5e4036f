package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"docrag/internal/port"
)

// TextParser reads a plain text file as a single unpaginated record.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Parse(ctx context.Context, path string) ([]port.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return []port.Record{{Text: strings.ToValidUTF8(string(data), "�")}}, nil
}

func (p *TextParser) Extensions() []string {
	return []string{"txt"}
}
