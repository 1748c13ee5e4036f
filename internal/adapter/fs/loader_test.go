package fs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docrag/internal/adapter/parser"
	"docrag/internal/domain"
	"docrag/internal/port"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeDocx(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		text + `</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

type failingParser struct{}

func (failingParser) Parse(context.Context, string) ([]port.Record, error) {
	return nil, errors.New("corrupt file")
}

func (failingParser) Extensions() []string { return []string{"bad"} }

type pagedParser struct{}

func (pagedParser) Parse(context.Context, string) ([]port.Record, error) {
	return []port.Record{
		{Text: "page one", Page: 0, HasPage: true},
		{Text: "page three", Page: 2, HasPage: true},
	}, nil
}

func (pagedParser) Extensions() []string { return []string{"paged"} }

type partialParser struct{}

func (partialParser) Parse(context.Context, string) ([]port.Record, error) {
	return []port.Record{{Text: "page one", Page: 0, HasPage: true}},
		&port.PartialError{Skipped: []int{2}, Err: errors.New("bad content stream")}
}

func (partialParser) Extensions() []string { return []string{"partial"} }

func newTestLoader(reg *parser.Registry) *Loader {
	return NewLoader(reg, "README.md", []string{".*"}, quietLogger())
}

func TestLoadEachSupportedExtension(t *testing.T) {
	cases := map[string]func(t *testing.T, dir string){
		"notes.txt": func(t *testing.T, dir string) { writeFile(t, dir, "notes.txt", "Cats are mammals.") },
		"table.csv": func(t *testing.T, dir string) { writeFile(t, dir, "table.csv", "a,b\n1,2\n") },
		"memo.docx": func(t *testing.T, dir string) { writeDocx(t, filepath.Join(dir, "memo.docx"), "Memo body") },
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			setup(t, dir)

			docs, err := newTestLoader(parser.DefaultRegistry()).Load(context.Background(), dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(docs) == 0 {
				t.Fatal("expected at least one document")
			}
			for _, d := range docs {
				if d.Metadata.Source != name {
					t.Errorf("expected source %s, got %s", name, d.Metadata.Source)
				}
				if d.Metadata.Page != 0 {
					t.Errorf("expected page 0 for unpaginated format, got %d", d.Metadata.Page)
				}
			}
		})
	}
}

func TestLoadSkipsMarkerHiddenAndUnknown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# Data Directory")
	writeFile(t, dir, ".hidden.txt", "secret")
	writeFile(t, dir, "image.png", "binary")
	writeFile(t, dir, "doc1.txt", "Cats are mammals.")
	if err := os.Mkdir(filepath.Join(dir, "nested.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	docs, err := newTestLoader(parser.DefaultRegistry()).Load(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Metadata.Source != "doc1.txt" {
		t.Errorf("unexpected source: %s", docs[0].Metadata.Source)
	}
}

func TestLoadContinuesAfterParserFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bad", "x")
	writeFile(t, dir, "b.txt", "still loaded")

	reg := parser.DefaultRegistry()
	reg.Register(failingParser{})

	docs, err := newTestLoader(reg).Load(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Metadata.Source != "b.txt" {
		t.Errorf("expected only b.txt, got %+v", docs)
	}
}

func TestLoadPreservesParserPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "book.paged", "")

	reg := parser.NewRegistry()
	reg.Register(pagedParser{})

	docs, err := newTestLoader(reg).Load(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[1].Metadata.Page != 2 {
		t.Errorf("expected parser page 2, got %d", docs[1].Metadata.Page)
	}
}

func TestLoadKeepsPagesAndLogsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scan.partial", "x")

	reg := parser.NewRegistry()
	reg.Register(partialParser{})

	var logs bytes.Buffer
	l := NewLoader(reg, "README.md", nil, slog.New(slog.NewTextHandler(&logs, nil)))
	docs, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Metadata.Source != "scan.partial" {
		t.Fatalf("expected the readable page to load, got %+v", docs)
	}
	out := logs.String()
	if !strings.Contains(out, "skipped unreadable pages") || !strings.Contains(out, "pages=[2]") {
		t.Errorf("expected a warning naming the skipped page, got %q", out)
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# Data Directory")

	docs, err := newTestLoader(parser.DefaultRegistry()).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("empty directory should not be an error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := newTestLoader(parser.DefaultRegistry()).Load(context.Background(), "/nonexistent/data")
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestValidateExtension(t *testing.T) {
	allowed := map[string]struct{}{"pdf": {}, "txt": {}, "csv": {}, "docx": {}}

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"report.PDF", false},
		{"notes.txt", false},
		{"script.sh", true},
		{"archive.tar.gz", true},
		{"noext", true},
	}

	for _, tt := range tests {
		err := ValidateExtension(tt.name, allowed)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateExtension(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", tt.name, err)
		}
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"doc.txt":             "doc.txt",
		"../../etc/passwd":    "passwd",
		`C:\\Users\\me\\a.pdf`: "a.pdf",
	}
	for in, want := range tests {
		got, err := SafeName(in)
		if err != nil {
			t.Errorf("SafeName(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := SafeName(""); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestEnsureDataDirAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := EnsureDataDir(dir, "README.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "README.md")); err != nil {
		t.Fatalf("expected marker file: %v", err)
	}
	writeFile(t, dir, "a.txt", "x")

	names, err := ListDocuments(dir, "README.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "a.txt" {
		t.Errorf("unexpected listing: %v", names)
	}
}
