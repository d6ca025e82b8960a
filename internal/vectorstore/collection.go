package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/apresai/quizzify/internal/chunk"
	"github.com/apresai/quizzify/internal/embed"
	"github.com/apresai/quizzify/internal/ingest"
)

var (
	ErrNotBuilt = errors.New("collection has not been created")
	ErrNoMatch  = errors.New("no matching documents found")
)

// Collection indexes a page collection for retrieval: pages are chunked,
// embedded and written to the store.
type Collection struct {
	splitter chunk.Splitter
	embedder embed.Embedder
	store    Store
	log      *slog.Logger
	built    bool
}

func NewCollection(store Store, embedder embed.Embedder, splitter chunk.Splitter, logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		log:      logger,
	}
}

// Build replaces the collection's contents with the given pages and returns
// the number of chunks stored.
func (c *Collection) Build(ctx context.Context, pages ingest.PageCollection) (int, error) {
	chunks, err := c.splitter.Split(pages)
	if err != nil {
		return 0, err
	}
	c.log.InfoContext(ctx, "Split pages into documents", "pages", len(pages), "documents", len(chunks))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.PageContent
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = Document{
			ID:        uuid.NewString(),
			Content:   ch.PageContent,
			Metadata:  ch.Metadata,
			Embedding: vecs[i],
		}
	}

	if err := c.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}
	if err := c.store.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}

	c.built = true
	c.log.InfoContext(ctx, "Created collection", "documents", len(docs))
	return len(docs), nil
}

// Attach marks a collection built in an earlier run as usable. It fails when
// the store holds nothing.
func (c *Collection) Attach(ctx context.Context) (int, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotBuilt
	}
	c.built = true
	return n, nil
}

func (c *Collection) Built() bool { return c.built }

// Query returns the single best match for q.
func (c *Collection) Query(ctx context.Context, q string) (ScoredDocument, error) {
	hits, err := c.search(ctx, q, 1)
	if err != nil {
		return ScoredDocument{}, err
	}
	if len(hits) == 0 {
		return ScoredDocument{}, ErrNoMatch
	}
	return hits[0], nil
}

// Retrieve returns the content of the k best matches for q.
func (c *Collection) Retrieve(ctx context.Context, q string, k int) ([]string, error) {
	hits, err := c.search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Content
	}
	return out, nil
}

func (c *Collection) search(ctx context.Context, q string, k int) ([]ScoredDocument, error) {
	if !c.built {
		return nil, ErrNotBuilt
	}
	vec, err := c.embedder.EmbedQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error during query: %w", err)
	}
	hits, err := c.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("error during query: %w", err)
	}
	return hits, nil
}
