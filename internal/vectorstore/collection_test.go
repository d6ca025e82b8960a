package vectorstore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/chunk"
	"github.com/apresai/quizzify/internal/ingest"
	"github.com/apresai/quizzify/internal/vectorstore"
)

// keywordEmbedder maps text onto a two-dimensional space: how often it says
// "plant" and how often it says "cell".
type keywordEmbedder struct {
	err error
}

func (e keywordEmbedder) vec(text string) []float32 {
	t := strings.ToLower(text)
	return []float32{float32(strings.Count(t, "plant")), float32(strings.Count(t, "cell"))}
}

func (e keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vec(text), nil
}

func (e keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vec(t)
	}
	return out, nil
}

// memoryStore ranks by dot product. It stands in for the database.
type memoryStore struct {
	docs   []vectorstore.Document
	resets int
}

func (s *memoryStore) Add(_ context.Context, docs []vectorstore.Document) error {
	s.docs = append(s.docs, docs...)
	return nil
}

func (s *memoryStore) Search(_ context.Context, vec []float32, k int) ([]vectorstore.ScoredDocument, error) {
	var out []vectorstore.ScoredDocument
	for _, d := range s.docs {
		var dot float64
		for i := range vec {
			dot += float64(vec[i] * d.Embedding[i])
		}
		out = append(out, vectorstore.ScoredDocument{Document: d, Score: dot})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *memoryStore) Count(context.Context) (int, error) { return len(s.docs), nil }

func (s *memoryStore) Reset(context.Context) error {
	s.docs = nil
	s.resets++
	return nil
}

var _ = Describe("Collection", func() {
	var (
		ctx   context.Context
		store *memoryStore
		coll  *vectorstore.Collection
		pages ingest.PageCollection
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &memoryStore{}
		coll = vectorstore.NewCollection(store, keywordEmbedder{}, chunk.NewSplitter(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		pages = ingest.PageCollection{
			{Source: "bio.pdf", Page: 1, Text: "A plant uses light. Every plant is green."},
			{Source: "bio.pdf", Page: 2, Text: "The cell membrane surrounds the cell."},
		}
	})

	It("refuses queries before it is built", func() {
		_, err := coll.Query(ctx, "plant")
		Expect(err).To(MatchError(vectorstore.ErrNotBuilt))
		_, err = coll.Retrieve(ctx, "plant", 2)
		Expect(err).To(MatchError(vectorstore.ErrNotBuilt))
	})

	It("refuses to build from no pages", func() {
		_, err := coll.Build(ctx, nil)
		Expect(err).To(MatchError(chunk.ErrNoDocuments))
		Expect(coll.Built()).To(BeFalse())
	})

	It("builds and answers queries with the best match", func() {
		n, err := coll.Build(ctx, pages)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
		Expect(store.docs[0].ID).NotTo(BeEmpty())
		Expect(store.docs[0].Metadata).To(HaveKeyWithValue("source", "bio.pdf"))

		hit, err := coll.Query(ctx, "cell")
		Expect(err).NotTo(HaveOccurred())
		Expect(hit.Content).To(ContainSubstring("membrane"))

		passages, err := coll.Retrieve(ctx, "plant", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(passages).To(HaveLen(2))
		Expect(passages[0]).To(ContainSubstring("light"))
	})

	It("replaces earlier contents on rebuild", func() {
		_, err := coll.Build(ctx, pages)
		Expect(err).NotTo(HaveOccurred())
		_, err = coll.Build(ctx, pages[:1])
		Expect(err).NotTo(HaveOccurred())
		Expect(store.docs).To(HaveLen(1))
		Expect(store.resets).To(Equal(2))
	})

	It("reports no match on an empty result", func() {
		_, err := coll.Build(ctx, pages)
		Expect(err).NotTo(HaveOccurred())
		store.docs = nil
		_, err = coll.Query(ctx, "plant")
		Expect(err).To(MatchError(vectorstore.ErrNoMatch))
	})

	It("wraps embedding failures", func() {
		coll = vectorstore.NewCollection(store, keywordEmbedder{err: errors.New("quota")}, chunk.NewSplitter(), nil)
		_, err := coll.Build(ctx, pages)
		Expect(err).To(MatchError(ContainSubstring("failed to create collection: quota")))
	})

	It("attaches to a collection built earlier", func() {
		_, err := coll.Attach(ctx)
		Expect(err).To(MatchError(vectorstore.ErrNotBuilt))

		store.docs = []vectorstore.Document{{ID: "1", Content: "plant", Embedding: []float32{1, 0}}}
		n, err := coll.Attach(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		passages, err := coll.Retrieve(ctx, "plant", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(passages).To(Equal([]string{"plant"}))
	})
})
