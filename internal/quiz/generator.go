package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultTopic = "General Knowledge"
	MaxQuestions = 10

	// attemptsPerQuestion bounds model calls per requested question.
	attemptsPerQuestion = 10
	// contextDocs is how many retrieved chunks go into each prompt.
	contextDocs = 4
)

var ErrTooManyQuestions = fmt.Errorf("number of questions cannot exceed %d", MaxQuestions)

// Retriever supplies context passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Model completes a prompt. Backends live in internal/llm.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// GeneratorConfig configures a Generator. Retriever and Model are required.
type GeneratorConfig struct {
	Topic        string
	NumQuestions int
	Retriever    Retriever
	Model        Model
	// MaxConsecutiveFailures stops a run whose model keeps failing; zero
	// disables the cap.
	MaxConsecutiveFailures int
	Logger                 *slog.Logger
	OnAttempt              func(Attempt)
}

// Generator produces a quiz of unique questions for a topic using context
// retrieved from the document collection.
type Generator struct {
	topic        string
	numQuestions int
	retriever    Retriever
	model        Model
	maxFailures  int
	log          *slog.Logger
	onAttempt    func(Attempt)
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	if cfg.NumQuestions > MaxQuestions {
		return nil, ErrTooManyQuestions
	}
	if cfg.NumQuestions < 1 {
		return nil, fmt.Errorf("number of questions must be at least 1 (got %d)", cfg.NumQuestions)
	}
	if cfg.Retriever == nil {
		return nil, errors.New("vectorstore not provided")
	}
	if cfg.Model == nil {
		return nil, errors.New("model not provided")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		topic:        topic,
		numQuestions: cfg.NumQuestions,
		retriever:    cfg.Retriever,
		model:        cfg.Model,
		maxFailures:  cfg.MaxConsecutiveFailures,
		log:          logger,
		onAttempt:    cfg.OnAttempt,
	}, nil
}

func (g *Generator) Topic() string { return g.topic }

// MaxAttempts is the attempt ceiling for one Generate call.
func (g *Generator) MaxAttempts() int {
	return g.numQuestions * attemptsPerQuestion
}

// Generate builds a quiz. Context is retrieved once for the topic and reused
// for every attempt. When the attempt ceiling is hit the partial quiz is
// returned together with an *ExhaustedError.
func (g *Generator) Generate(ctx context.Context) (*Quiz, error) {
	passages, err := g.retriever.Retrieve(ctx, g.topic, contextDocs)
	if err != nil {
		return nil, fmt.Errorf("retrieve context for %q: %w", g.topic, err)
	}

	system := buildSystemPrompt(g.topic)
	prompt := buildUserPrompt(g.topic, passages)

	produce := func(ctx context.Context) (Question, error) {
		text, err := g.model.Complete(ctx, system, prompt)
		if err != nil {
			return Question{}, err
		}
		return ParseQuestion(text)
	}

	opts := []Option{
		WithLogger(g.log),
		WithMaxConsecutiveFailures(g.maxFailures),
	}
	if g.onAttempt != nil {
		opts = append(opts, WithObserver(g.onAttempt))
	}

	bank, genErr := Generate(ctx, g.numQuestions, g.MaxAttempts(), produce, QuestionKey, opts...)
	if bank == nil {
		return nil, genErr
	}
	if genErr != nil && !errors.Is(genErr, ErrExhausted) {
		return nil, genErr
	}

	id, err := NewQuizID()
	if err != nil {
		return nil, err
	}

	q := &Quiz{
		ID:        id,
		Topic:     g.topic,
		Requested: g.numQuestions,
		Questions: bank.Items(),
		Attempts:  bank.Attempts(),
		CreatedAt: time.Now().UTC(),
	}
	g.log.InfoContext(ctx, "Quiz generated",
		"quiz_id", id, "questions", len(q.Questions), "requested", q.Requested,
		"attempts", q.Attempts, "state", bank.State().String())

	return q, genErr
}
