package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"docrag/internal/domain"
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits text on the largest boundary that keeps every chunk
// within size characters. Consecutive chunks share at least overlap characters.
type RecursiveChunker struct {
	size       int
	overlap    int
	separators []string
}

func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &RecursiveChunker{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}, nil
}

// Split chunks every document in order. Chunks inherit the document metadata.
func (c *RecursiveChunker) Split(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	ordinals := make(map[string]int)

	for _, doc := range docs {
		for _, text := range c.SplitText(doc.Text) {
			meta := doc.Metadata.Clone()
			meta.SourceInfo = domain.SourceInfo(meta.Source, meta.Page)

			key := fmt.Sprintf("%s:%d", meta.Source, meta.Page)
			chunks = append(chunks, domain.Chunk{
				ID:       ChunkID(meta.Source, meta.Page, ordinals[key]),
				Text:     text,
				Metadata: meta,
			})
			ordinals[key]++
		}
	}

	return chunks
}

// SplitText splits a single text into trimmed, non-empty chunks.
func (c *RecursiveChunker) SplitText(text string) []string {
	runes := []rune(text)
	bounds := []int{0}
	c.collectBounds(text, 0, c.separators, &bounds)
	return c.assemble(runes, bounds)
}

// pieceLimit caps a piece so that an overlap tail plus the next piece always
// fits in one chunk.
func (c *RecursiveChunker) pieceLimit() int {
	limit := c.size - c.overlap - 1
	if c.overlap == 0 {
		limit = c.size
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// collectBounds appends the rune offsets at which pieces of text end, splitting
// on the largest separator present and recursing into pieces over the limit.
func (c *RecursiveChunker) collectBounds(text string, offset int, separators []string, bounds *[]int) int {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	limit := c.pieceLimit()
	for _, piece := range splitKeepSeparator(text, separator) {
		n := runeLen(piece)
		if n <= limit || len(rest) == 0 {
			offset += n
			*bounds = append(*bounds, offset)
			continue
		}
		offset = c.collectBounds(piece, offset, rest, bounds)
	}
	return offset
}

// assemble packs pieces greedily into chunks of at most size runes. Each chunk
// after the first starts inside its predecessor so that at least overlap
// visible runes are shared.
func (c *RecursiveChunker) assemble(runes []rune, bounds []int) []string {
	var chunks []string
	n := len(runes)
	start := skipSpace(runes, 0)
	prevEnd := 0

	for start < n {
		end := start
		for i := sort.SearchInts(bounds, start+1); i < len(bounds) && bounds[i]-start <= c.size; i++ {
			end = bounds[i]
		}
		if end <= prevEnd || end <= start {
			end = min(start+c.size, n)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}
		prevEnd = end
		start = skipSpace(runes, c.nextStart(runes, bounds, start, end))
	}
	return chunks
}

// nextStart picks where the chunk after runes[start:end] begins: the latest
// piece boundary, else word boundary, that keeps overlap visible runes and
// leaves room for the following piece.
func (c *RecursiveChunker) nextStart(runes []rune, bounds []int, start, end int) int {
	if c.overlap == 0 {
		return end
	}

	visEnd := end
	for visEnd > start && unicode.IsSpace(runes[visEnd-1]) {
		visEnd--
	}
	p := visEnd - c.overlap
	if p <= start {
		return start + 1
	}
	for p > start+1 && unicode.IsSpace(runes[p]) {
		p--
	}

	next := bounds[sort.SearchInts(bounds, end+1)]
	fits := func(s int) bool { return next-s <= c.size }

	if i := sort.SearchInts(bounds, p+1) - 1; i >= 0 && bounds[i] > start && fits(bounds[i]) {
		return bounds[i]
	}
	for w := p; w > start+1 && p-w < c.overlap; w-- {
		if unicode.IsSpace(runes[w-1]) && !unicode.IsSpace(runes[w]) {
			if fits(w) {
				return w
			}
			break
		}
	}
	return p
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

// splitKeepSeparator splits text on sep, keeping sep at the start of each following piece.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// ChunkID derives a stable ID from a chunk's position within its source page.
func ChunkID(source string, page, ordinal int) string {
	data := fmt.Sprintf("%s:%d:%d", source, page, ordinal)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
