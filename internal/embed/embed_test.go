package embed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// lengthBackend embeds numeric texts as a one-element vector holding the
// number. Queries embed as their length.
type lengthBackend struct {
	mu      sync.Mutex
	batches []int
	failAt  int
}

func (b *lengthBackend) embedOne(_ context.Context, text string, _ genai.TaskType) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (b *lengthBackend) embedBatch(_ context.Context, texts []string, taskType genai.TaskType) ([][]float32, error) {
	b.mu.Lock()
	b.batches = append(b.batches, len(texts))
	b.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil, err
		}
		if b.failAt > 0 && n == b.failAt {
			return nil, errors.New("quota exceeded")
		}
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

var _ = Describe("embedBatches", func() {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	numbered := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = strconv.Itoa(i)
		}
		return out
	}

	It("preserves input order across batches", func() {
		backend := &lengthBackend{}
		vecs, err := embedBatches(context.Background(), backend, numbered(250), quiet)
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(250))
		for i, v := range vecs {
			Expect(v).To(Equal([]float32{float32(i)}))
		}
		Expect(backend.batches).To(ConsistOf(100, 100, 50))
	})

	It("returns nothing for no input", func() {
		vecs, err := embedBatches(context.Background(), &lengthBackend{}, nil, quiet)
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(BeEmpty())
	})

	It("fails when any batch fails", func() {
		_, err := embedBatches(context.Background(), &lengthBackend{failAt: 150}, numbered(250), quiet)
		Expect(err).To(MatchError(ContainSubstring("embed batch 100-200")))
	})

	It("embeds a query through the backend", func() {
		g := &Gemini{backend: &lengthBackend{}, log: quiet}
		vec, err := g.EmbedQuery(context.Background(), "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{3}))
	})
})
