// Package vectorstore keeps embedded chunks in an external vector database and
// answers similarity queries against them.
package vectorstore

import "context"

// Document is a stored chunk with its embedding.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// ScoredDocument is a search hit. Score is a relevance in [0, 1] where 1 is
// identical.
type ScoredDocument struct {
	Document
	Score float64
}

// Store is a single named collection in a vector database.
type Store interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, vec []float32, k int) ([]ScoredDocument, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}
