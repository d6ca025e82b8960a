// Package chunk splits extracted pages into overlapping passages for
// embedding.
package chunk

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/apresai/quizzify/internal/ingest"
)

const (
	DefaultSeparator    = " "
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 100
)

var ErrNoDocuments = errors.New("no documents found")

// Chunk is one passage with the metadata of the page it came from.
type Chunk = schema.Document

type Splitter struct {
	Separator    string
	ChunkSize    int
	ChunkOverlap int
}

func NewSplitter() Splitter {
	return Splitter{
		Separator:    DefaultSeparator,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Split cuts every page into chunks, preserving page order. Each chunk keeps
// the page's source and page number in its metadata.
func (s Splitter) Split(pages ingest.PageCollection) ([]Chunk, error) {
	if len(pages) == 0 {
		return nil, ErrNoDocuments
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", s.ChunkOverlap, s.ChunkSize)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators([]string{s.Separator}),
		textsplitter.WithChunkSize(s.ChunkSize),
		textsplitter.WithChunkOverlap(s.ChunkOverlap),
	)

	docs := make([]schema.Document, 0, len(pages))
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		meta := make(map[string]any, len(p.Metadata)+2)
		for k, v := range p.Metadata {
			meta[k] = v
		}
		meta["source"] = p.Source
		meta["page"] = p.Page
		docs = append(docs, schema.Document{PageContent: p.Text, Metadata: meta})
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	chunks, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	return chunks, nil
}
