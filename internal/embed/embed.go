// Package embed turns text into vectors through a hosted embedding model.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

const (
	DefaultModel = "text-embedding-004"
	// Dimensions of DefaultModel vectors.
	Dimensions = 768

	batchSize     = 100
	maxConcurrent = 4
)

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// batchEmbedder is the part of the Gemini embedding API that Gemini uses.
type batchEmbedder interface {
	embedOne(ctx context.Context, text string, taskType genai.TaskType) ([]float32, error)
	embedBatch(ctx context.Context, texts []string, taskType genai.TaskType) ([][]float32, error)
}

// Gemini embeds with the Gemini API using the key in GEMINI_API_KEY.
type Gemini struct {
	client  *genai.Client
	backend batchEmbedder
	log     *slog.Logger
}

func NewGemini(ctx context.Context, model string, logger *slog.Logger) (*Gemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		client:  client,
		backend: &genaiBackend{model: client.EmbeddingModel(model)},
		log:     logger,
	}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.backend.embedOne(ctx, text, genai.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// EmbedDocuments embeds texts in batches run concurrently. Result order
// matches input order.
func (g *Gemini) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatches(ctx, g.backend, texts, g.log)
}

func embedBatches(ctx context.Context, backend batchEmbedder, texts []string, logger *slog.Logger) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := backend.embedBatch(gctx, texts[start:end], genai.TaskTypeRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			logger.DebugContext(gctx, "Embedded batch", "start", start, "end", end)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type genaiBackend struct {
	model *genai.EmbeddingModel
}

func (b *genaiBackend) embedOne(ctx context.Context, text string, taskType genai.TaskType) ([]float32, error) {
	em := *b.model
	em.TaskType = taskType
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("response contained no embedding")
	}
	return res.Embedding.Values, nil
}

func (b *genaiBackend) embedBatch(ctx context.Context, texts []string, taskType genai.TaskType) ([][]float32, error) {
	em := *b.model
	em.TaskType = taskType
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
