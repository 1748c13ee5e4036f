package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"docrag/internal/port"
)

// PDFParser extracts plain text page by page. Pages are numbered from 0.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Parse(ctx context.Context, path string) (records []port.Record, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	return extractPages(ctx, r.NumPage(), func(i int) (string, error) {
		page := r.Page(i)
		if page.V.IsNull() {
			return "", errNoPage
		}
		return page.GetPlainText(nil)
	})
}

var errNoPage = errors.New("page has no content stream")

// extractPages reads pages 1..total through text. Pages that fail to
// extract are collected into a *port.PartialError returned with the
// records of the pages that succeeded.
func extractPages(ctx context.Context, total int, text func(page int) (string, error)) ([]port.Record, error) {
	var (
		records []port.Record
		skipped []int
		firstErr error
	)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := text(i)
		if errors.Is(err, errNoPage) {
			continue
		}
		if err != nil {
			skipped = append(skipped, i)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		records = append(records, port.Record{
			Text:    strings.ToValidUTF8(body, "�"),
			Page:    i - 1,
			HasPage: true,
			Extra:   map[string]string{"total_pages": strconv.Itoa(total)},
		})
	}

	if len(skipped) > 0 {
		return records, &port.PartialError{Skipped: skipped, Err: firstErr}
	}
	return records, nil
}

func (p *PDFParser) Extensions() []string {
	return []string{"pdf"}
}
