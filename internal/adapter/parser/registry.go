package parser

import (
	"path/filepath"
	"sort"
	"strings"

	"docrag/internal/port"
)

// Registry maps lowercased file extensions to document parsers.
type Registry struct {
	parsers map[string]port.DocumentParser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]port.DocumentParser),
	}
}

// DefaultRegistry returns a registry with every built-in parser.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewPDFParser())
	reg.Register(NewTextParser())
	reg.Register(NewCSVParser())
	reg.Register(NewDocxParser())
	reg.Register(NewHTMLParser())
	return reg
}

// Restrict returns a registry holding only the allowed extensions.
func (r *Registry) Restrict(allowed map[string]struct{}) *Registry {
	out := NewRegistry()
	for ext, p := range r.parsers {
		if _, ok := allowed[ext]; ok {
			out.parsers[ext] = p
		}
	}
	return out
}

// Register adds p under every extension it reports, replacing earlier parsers.
func (r *Registry) Register(p port.DocumentParser) {
	for _, ext := range p.Extensions() {
		r.parsers[normalizeExt(ext)] = p
	}
}

// Lookup returns the parser for an extension, with or without the leading dot.
func (r *Registry) Lookup(ext string) (port.DocumentParser, bool) {
	p, ok := r.parsers[normalizeExt(ext)]
	return p, ok
}

// ForPath returns the parser for a file path.
func (r *Registry) ForPath(path string) (port.DocumentParser, bool) {
	return r.Lookup(filepath.Ext(path))
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
