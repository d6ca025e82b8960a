package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceText SourceType = "text"
)

func (s SourceType) String() string {
	return string(s)
}

// Extractor turns a file on disk into page records. Implementations must be
// deterministic for identical file bytes.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]PageRecord, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) ([]PageRecord, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) ([]PageRecord, error) {
	return f(ctx, path)
}

// DetectSource classifies a file name by extension. Unknown extensions are
// treated as PDF, matching an upload widget that only accepts PDFs.
func DetectSource(name string) SourceType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".text":
		return SourceText
	default:
		return SourcePDF
	}
}

// Router dispatches to an extractor by the path's extension.
type Router struct {
	extractors map[SourceType]Extractor
}

func NewRouter() *Router {
	return &Router{
		extractors: map[SourceType]Extractor{
			SourcePDF:  &PDFExtractor{},
			SourceText: &TextExtractor{},
		},
	}
}

// Handle registers e for source type t, replacing any previous extractor.
func (r *Router) Handle(t SourceType, e Extractor) {
	r.extractors[t] = e
}

func (r *Router) Extract(ctx context.Context, path string) ([]PageRecord, error) {
	t := DetectSource(path)
	e, ok := r.extractors[t]
	if !ok {
		return nil, fmt.Errorf("no extractor for %s files", t)
	}
	return e.Extract(ctx, path)
}
