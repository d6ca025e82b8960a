package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/quizzify/internal/ingest"
	"github.com/apresai/quizzify/internal/progress"
	"github.com/apresai/quizzify/internal/quiz"
)

var tracer = otel.Tracer("quizzify/pipeline")

// Index is the document collection the pipeline builds and then queries for
// question context.
type Index interface {
	Build(ctx context.Context, pages ingest.PageCollection) (int, error)
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

type Options struct {
	// Inputs are local file paths or http(s) URLs.
	Inputs []string
	// Uploads are files already held in memory, ingested after Inputs.
	Uploads []ingest.UploadedFile

	Topic                  string
	NumQuestions           int
	MaxConsecutiveFailures int
	FailurePolicy          ingest.FailurePolicy
	TempDir                string

	// Output is the quiz JSON path. Empty means OutputDir/quiz-<id>.json, and
	// when OutputDir is empty too the quiz is not written.
	Output    string
	OutputDir string

	Index Index
	Model quiz.Model

	Verbose    bool
	OnProgress progress.Callback
	Logger     *slog.Logger
}

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Result describes a finished run.
type Result struct {
	Quiz       *quiz.Quiz
	OutputFile string
	Pages      int
	Chunks     int
	// Skipped lists uploads dropped under the skip failure policy.
	Skipped []string
}

// Run ingests the inputs, indexes their pages, generates a quiz and saves it.
// A quiz with fewer questions than requested is still saved and returned; the
// shortfall is reported through the complete event and Quiz.Shortfall.
func Run(ctx context.Context, opts Options) (*Result, error) {
	pipelineStart := time.Now()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := opts.OnProgress
	if report == nil {
		report = progress.NopCallback
	}
	if opts.Index == nil {
		return nil, &PipelineError{Stage: "index", Message: "no document index configured"}
	}
	if opts.Model == nil {
		return nil, &PipelineError{Stage: "generate", Message: "no model configured"}
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("quiz.topic", opts.Topic),
			attribute.Int("quiz.requested", opts.NumQuestions),
			attribute.Int("pipeline.inputs", len(opts.Inputs)+len(opts.Uploads)),
		))
	defer span.End()

	fail := func(stage progress.Stage, err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report(progress.Event{Stage: stage, Message: "failed", Error: err, Elapsed: time.Since(pipelineStart)})
		return nil, err
	}

	res := &Result{}

	// Stage 1: Ingest
	pages, skipped, err := ingestStage(ctx, opts, report, logger)
	if err != nil {
		return fail(progress.StageIngest, err)
	}
	res.Pages = len(pages)
	res.Skipped = skipped

	// Stage 2: Index
	stageCtx, stageSpan := tracer.Start(ctx, "pipeline.index")
	report(progress.NewEvent(progress.StageIndex, "Building document collection...", 0, pipelineStart))
	chunks, err := opts.Index.Build(stageCtx, pages)
	stageSpan.SetAttributes(attribute.Int("index.chunks", chunks))
	stageSpan.End()
	if err != nil {
		return fail(progress.StageIndex, &PipelineError{Stage: "index", Message: "failed to create collection", Err: err})
	}
	res.Chunks = chunks
	report(progress.NewEvent(progress.StageIndex,
		fmt.Sprintf("Successfully split pages into %d documents", chunks), 1.0, pipelineStart))
	logger.InfoContext(ctx, "Collection built", "pages", len(pages), "chunks", chunks)

	// Stage 3: Generate
	q, err := generateStage(ctx, opts, report, logger, pipelineStart)
	if err != nil {
		return fail(progress.StageGenerate, err)
	}
	res.Quiz = q

	// Stage 4: Save
	out := opts.Output
	if out == "" && opts.OutputDir != "" {
		out = filepath.Join(opts.OutputDir, fmt.Sprintf("quiz-%s.json", strings.ToLower(q.ID)))
	}
	if out != "" {
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fail(progress.StageComplete, &PipelineError{Stage: "complete", Message: "failed to create output directory", Err: err})
			}
		}
		if err := quiz.SaveQuiz(q, out); err != nil {
			return fail(progress.StageComplete, &PipelineError{Stage: "complete", Message: "failed to save quiz", Err: err})
		}
		res.OutputFile = out
	}

	span.SetAttributes(
		attribute.String("quiz.id", q.ID),
		attribute.Int("quiz.questions", len(q.Questions)),
		attribute.Bool("quiz.shortfall", q.Shortfall()),
	)

	msg := fmt.Sprintf("Quiz ready: %d questions", len(q.Questions))
	if q.Shortfall() {
		msg = fmt.Sprintf("Quiz ready: %d of %d questions", len(q.Questions), q.Requested)
	}
	complete := progress.NewEvent(progress.StageComplete, msg, 1.0, pipelineStart)
	complete.OutputFile = out
	complete.Questions = len(q.Questions)
	complete.Shortfall = q.Shortfall()
	report(complete)

	logger.InfoContext(ctx, "Pipeline complete",
		"quiz_id", q.ID, "questions", len(q.Questions), "requested", q.Requested,
		"output", out, "duration", time.Since(pipelineStart).Round(time.Millisecond).String())
	return res, nil
}

func ingestStage(ctx context.Context, opts Options, report progress.Callback, logger *slog.Logger) (ingest.PageCollection, []string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.ingest")
	defer span.End()

	report(progress.Event{Stage: progress.StageIngest, Message: "Ingesting documents..."})

	// Inputs that cannot be read or fetched follow the same failure policy
	// as files that cannot be extracted.
	var skipped []string
	uploads := make([]ingest.UploadedFile, 0, len(opts.Inputs)+len(opts.Uploads))
	for _, in := range opts.Inputs {
		f, err := loadInput(ctx, in)
		if err != nil {
			if opts.FailurePolicy == ingest.SkipFailed && ctx.Err() == nil {
				logger.WarnContext(ctx, "Skipping input that could not be read", "input", in, "error", err)
				skipped = append(skipped, in)
				continue
			}
			return nil, nil, &PipelineError{Stage: "ingest", Message: fmt.Sprintf("failed to read %s", in), Err: err}
		}
		uploads = append(uploads, f)
	}
	uploads = append(uploads, opts.Uploads...)

	p := ingest.NewPipeline(
		ingest.WithFailurePolicy(opts.FailurePolicy),
		ingest.WithTempDir(opts.TempDir),
		ingest.WithReporter(report),
		ingest.WithLogger(logger),
	)

	pages, err := p.Ingest(ctx, uploads)
	var skipErr *ingest.SkippedError
	switch {
	case errors.As(err, &skipErr):
		for _, f := range skipErr.Files {
			skipped = append(skipped, f.File)
		}
	case err != nil:
		return nil, nil, &PipelineError{Stage: "ingest", Message: "failed to extract content", Err: err}
	}

	span.SetAttributes(
		attribute.Int("ingest.files", len(uploads)),
		attribute.Int("ingest.pages", len(pages)),
		attribute.Int("ingest.skipped", len(skipped)),
	)
	if len(pages) == 0 {
		return nil, nil, &PipelineError{Stage: "ingest", Message: "no pages were extracted from the input"}
	}
	return pages, skipped, nil
}

func generateStage(ctx context.Context, opts Options, report progress.Callback, logger *slog.Logger, start time.Time) (*quiz.Quiz, error) {
	ctx, span := tracer.Start(ctx, "pipeline.generate")
	defer span.End()

	gen, err := quiz.NewGenerator(quiz.GeneratorConfig{
		Topic:                  opts.Topic,
		NumQuestions:           opts.NumQuestions,
		Retriever:              opts.Index,
		Model:                  opts.Model,
		MaxConsecutiveFailures: opts.MaxConsecutiveFailures,
		Logger:                 logger,
		OnAttempt: func(a quiz.Attempt) {
			e := progress.NewEvent(progress.StageGenerate,
				fmt.Sprintf("Generating questions (%d/%d)", a.Accepted, opts.NumQuestions),
				float64(a.Accepted)/float64(opts.NumQuestions), start)
			e.Current = a.Accepted
			e.Total = opts.NumQuestions
			report(e)
		},
	})
	if err != nil {
		return nil, &PipelineError{Stage: "generate", Message: "invalid quiz settings", Err: err}
	}

	span.SetAttributes(
		attribute.String("quiz.topic", gen.Topic()),
		attribute.Int("quiz.max_attempts", gen.MaxAttempts()),
	)

	q, err := gen.Generate(ctx)
	if err != nil && !errors.Is(err, quiz.ErrExhausted) {
		return nil, &PipelineError{Stage: "generate", Message: "failed to generate quiz", Err: err}
	}
	if q == nil || len(q.Questions) == 0 {
		return nil, &PipelineError{Stage: "generate", Message: "no questions were produced", Err: err}
	}
	if err != nil {
		logger.WarnContext(ctx, "Quiz is short of requested questions",
			"questions", len(q.Questions), "requested", q.Requested, "error", err)
	}
	span.SetAttributes(attribute.Int("quiz.attempts", q.Attempts))
	return q, nil
}

// loadInput reads a local file or fetches a URL.
func loadInput(ctx context.Context, in string) (ingest.UploadedFile, error) {
	if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
		return ingest.FetchURL(ctx, in)
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return ingest.UploadedFile{}, err
	}
	return ingest.UploadedFile{Name: filepath.Base(in), Data: data}, nil
}
