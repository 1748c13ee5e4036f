package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"docrag/internal/port"
)

const docxBody = "word/document.xml"

// DocxParser reads the paragraphs of a Word document as one unpaginated record.
type DocxParser struct{}

func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

func (p *DocxParser) Parse(ctx context.Context, path string) ([]port.Record, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", docxBody, err)
		}
		defer rc.Close()

		text, err := extractDocxText(rc)
		if err != nil {
			return nil, err
		}
		return []port.Record{{Text: text}}, nil
	}

	return nil, fmt.Errorf("not a word document: %s missing", docxBody)
}

func (p *DocxParser) Extensions() []string {
	return []string{"docx"}
}

// extractDocxText walks WordprocessingML, keeping run text and paragraph breaks.
func extractDocxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		para   strings.Builder
		inText bool
	)
	flush := func() {
		line := strings.TrimRight(para.String(), " \t")
		para.Reset()
		if line == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()

	return sb.String(), nil
}
