package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"docrag/internal/port"
)

// HTMLParser reads a saved web page as one markdown record. Scripts, styles
// and page chrome are dropped before conversion.
type HTMLParser struct {
	converter *md.Converter
}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{converter: md.NewConverter("", true, nil)}
}

func (p *HTMLParser) Parse(ctx context.Context, path string) ([]port.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, footer").Remove()

	body, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("failed to read html body: %w", err)
	}
	text, err := p.converter.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to convert html: %w", err)
	}

	rec := port.Record{Text: strings.TrimSpace(text)}
	if title != "" {
		rec.Extra = map[string]string{"title": title}
	}
	return []port.Record{rec}, nil
}

func (p *HTMLParser) Extensions() []string {
	return []string{"html", "htm"}
}
