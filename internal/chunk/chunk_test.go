package chunk_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/chunk"
	"github.com/apresai/quizzify/internal/ingest"
)

var _ = Describe("Splitter", func() {
	It("reports an empty collection", func() {
		_, err := chunk.NewSplitter().Split(nil)
		Expect(err).To(MatchError(chunk.ErrNoDocuments))
	})

	It("reports a collection of blank pages", func() {
		_, err := chunk.NewSplitter().Split(ingest.PageCollection{{Source: "a.pdf", Page: 1}})
		Expect(err).To(MatchError(chunk.ErrNoDocuments))
	})

	It("keeps a short page as one chunk with its metadata", func() {
		chunks, err := chunk.NewSplitter().Split(ingest.PageCollection{
			{Source: "a.pdf", Page: 1, Text: "Cells are the unit of life.", Metadata: map[string]any{"total_pages": 2}},
			{Source: "a.pdf", Page: 2, Text: "Mitochondria make ATP."},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0].PageContent).To(Equal("Cells are the unit of life."))
		Expect(chunks[0].Metadata).To(HaveKeyWithValue("source", "a.pdf"))
		Expect(chunks[0].Metadata).To(HaveKeyWithValue("total_pages", 2))
		Expect(chunks[1].Metadata).To(HaveKeyWithValue("page", 2))
	})

	It("splits long pages on spaces within the size limit", func() {
		words := make([]string, 600)
		for i := range words {
			words[i] = "word"
		}
		text := strings.Join(words, " ")

		s := chunk.NewSplitter()
		chunks, err := s.Split(ingest.PageCollection{{Source: "long.pdf", Page: 1, Text: text}})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(chunks)).To(BeNumerically(">", 1))
		for _, c := range chunks {
			Expect(len(c.PageContent)).To(BeNumerically("<=", s.ChunkSize))
			Expect(c.Metadata).To(HaveKeyWithValue("source", "long.pdf"))
		}
	})

	It("rejects an overlap as large as the chunk", func() {
		s := chunk.Splitter{Separator: " ", ChunkSize: 10, ChunkOverlap: 10}
		_, err := s.Split(ingest.PageCollection{{Source: "a", Page: 1, Text: "x"}})
		Expect(err).To(MatchError(ContainSubstring("must be smaller")))
	})
})
