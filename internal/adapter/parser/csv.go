package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"docrag/internal/port"
)

// CSVParser emits one record per data row, rendered as "column: value" lines.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(ctx context.Context, path string) ([]port.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	var records []port.Record
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		var sb strings.Builder
		for i, v := range fields {
			name := "column_" + strconv.Itoa(i)
			if i < len(header) && header[i] != "" {
				name = header[i]
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(strings.TrimSpace(v))
		}

		records = append(records, port.Record{
			Text:  sb.String(),
			Extra: map[string]string{"row": strconv.Itoa(row)},
		})
	}

	return records, nil
}

func (p *CSVParser) Extensions() []string {
	return []string{"csv"}
}
