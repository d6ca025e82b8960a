package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/quizzify/internal/ingest"
	"github.com/apresai/quizzify/internal/observability"
	"github.com/apresai/quizzify/internal/pipeline"
	"github.com/apresai/quizzify/internal/progress"
	"github.com/apresai/quizzify/internal/quiz"
)

// GenerateRequest holds parameters for a quiz generation task.
type GenerateRequest struct {
	Files         []ingest.UploadedFile
	URLs          []string
	Topic         string
	NumQuestions  int
	Model         string
	FailurePolicy ingest.FailurePolicy
	Owner         string
}

// JobStore records job state. *Store is the DynamoDB implementation.
type JobStore interface {
	CreateJob(ctx context.Context, id, owner string, req GenerateRequest) error
	UpdateProgress(ctx context.Context, id string, status JobStatus, percent float64, message string) error
	CompleteJob(ctx context.Context, id string, q *quiz.Quiz, quizJSON, quizKey, quizURL string) error
	FailJob(ctx context.Context, id, errMsg string) error
	GetQuiz(ctx context.Context, id string) (*QuizItem, error)
	ListQuizzes(ctx context.Context, limit int, cursor string) ([]QuizItem, string, error)
}

// ArtifactStorage keeps finished quiz documents. *Storage is the S3
// implementation.
type ArtifactStorage interface {
	Upload(ctx context.Context, quizID string, data []byte) (key, url string, err error)
}

// Backend opens the document index and model for one task. The returned
// release func is called when the task ends.
type Backend interface {
	Open(ctx context.Context, taskID, model string) (pipeline.Index, quiz.Model, func(), error)
}

// TaskManager manages async quiz generation tasks.
type TaskManager struct {
	store   JobStore
	storage ArtifactStorage
	backend Backend
	log     *slog.Logger
	baseCtx context.Context // cancelled on SIGTERM for graceful shutdown

	maxConsecutiveFailures int
	progressInterval       time.Duration

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	maxTasks int
	running  int
	wg       sync.WaitGroup
}

// NewTaskManager creates a task manager.
// baseCtx should be cancelled on SIGTERM so pipeline goroutines can clean up.
func NewTaskManager(baseCtx context.Context, store JobStore, storage ArtifactStorage, backend Backend, maxTasks int, logger *slog.Logger) *TaskManager {
	if maxTasks <= 0 {
		maxTasks = 5
	}
	return &TaskManager{
		store:            store,
		storage:          storage,
		backend:          backend,
		log:              logger,
		baseCtx:          baseCtx,
		progressInterval: 2 * time.Second,
		cancels:          make(map[string]context.CancelFunc),
		maxTasks:         maxTasks,
	}
}

// SetMaxConsecutiveFailures caps back-to-back model failures per task.
func (tm *TaskManager) SetMaxConsecutiveFailures(n int) {
	tm.maxConsecutiveFailures = n
}

// StartTask creates the job record and starts the pipeline in a goroutine.
// Returns the quiz ID immediately.
func (tm *TaskManager) StartTask(ctx context.Context, req GenerateRequest) (string, error) {
	id, err := quiz.NewQuizID()
	if err != nil {
		return "", err
	}

	tm.mu.Lock()
	if tm.running >= tm.maxTasks {
		tm.mu.Unlock()
		return "", fmt.Errorf("max concurrent tasks reached (%d)", tm.maxTasks)
	}
	tm.running++

	// The task outlives the request, so it runs on baseCtx and only keeps
	// the request's trace.
	taskCtx := observability.DetachTraceContextFrom(ctx, tm.baseCtx)
	taskCtx, cancel := context.WithCancel(taskCtx)
	tm.cancels[id] = cancel
	tm.mu.Unlock()

	if err := tm.store.CreateJob(ctx, id, req.Owner, req); err != nil {
		tm.release(id)
		return "", fmt.Errorf("create job: %w", err)
	}

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		tm.runPipeline(taskCtx, id, req)
	}()

	return id, nil
}

// CancelTask cancels a running task.
func (tm *TaskManager) CancelTask(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cancel, ok := tm.cancels[id]; ok {
		cancel()
	}
}

// Running is the number of tasks in flight.
func (tm *TaskManager) Running() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.running
}

// Wait blocks until every started task has finished.
func (tm *TaskManager) Wait() {
	tm.wg.Wait()
}

// release frees the task's slot and cancels its context.
func (tm *TaskManager) release(id string) {
	tm.mu.Lock()
	if cancel, ok := tm.cancels[id]; ok {
		cancel()
		delete(tm.cancels, id)
	}
	tm.running--
	tm.mu.Unlock()
}

func (tm *TaskManager) runPipeline(ctx context.Context, id string, req GenerateRequest) {
	ctx, span := tracer.Start(ctx, "task.run",
		trace.WithAttributes(attribute.String("quiz_id", id)),
	)
	defer span.End()

	defer func() {
		// On shutdown, mark the job failed so it does not look stuck.
		if ctx.Err() != nil {
			failCtx, failCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer failCancel()
			_ = tm.store.FailJob(failCtx, id, "server shutdown during processing")
			tm.log.Info("Marked job as failed due to shutdown", "quiz_id", id)
		}
		tm.release(id)
	}()

	log := tm.log.With("quiz_id", id)

	fail := func(msg string, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		log.ErrorContext(ctx, msg, "error", err)
		if ferr := tm.store.FailJob(ctx, id, err.Error()); ferr != nil {
			log.WarnContext(ctx, "Fail job failed", "error", ferr)
		}
	}

	// Throttle DynamoDB writes except on stage transitions.
	var lastWrite time.Time
	var lastStage progress.Stage

	progressCb := func(evt progress.Event) {
		now := time.Now()
		stageChanged := evt.Stage != lastStage
		if !stageChanged && now.Sub(lastWrite) < tm.progressInterval {
			return
		}
		if stageChanged {
			span.AddEvent("stage_transition",
				trace.WithAttributes(
					attribute.String("stage", string(evt.Stage)),
					attribute.Float64("percent", evt.Percent),
				),
			)
		}
		if err := tm.store.UpdateProgress(ctx, id, mapStage(evt.Stage), evt.Percent, evt.Message); err != nil {
			log.WarnContext(ctx, "Update progress failed", "error", err)
		}
		lastWrite = now
		lastStage = evt.Stage
	}

	index, model, closeBackend, err := tm.backend.Open(ctx, id, req.Model)
	if err != nil {
		fail("Backend setup failed", err)
		return
	}
	defer closeBackend()

	pipelineStart := time.Now()
	log.InfoContext(ctx, "Pipeline starting",
		"model", req.Model, "files", len(req.Files), "urls", len(req.URLs),
		"topic", req.Topic, "num_questions", req.NumQuestions)

	res, err := pipeline.Run(ctx, pipeline.Options{
		Inputs:                 req.URLs,
		Uploads:                req.Files,
		Topic:                  req.Topic,
		NumQuestions:           req.NumQuestions,
		MaxConsecutiveFailures: tm.maxConsecutiveFailures,
		FailurePolicy:          req.FailurePolicy,
		Index:                  index,
		Model:                  model,
		OnProgress:             progressCb,
		Logger:                 log,
	})
	if err != nil {
		fail("Pipeline failed", err)
		return
	}

	q := res.Quiz
	q.ID = id
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		fail("Marshal quiz failed", err)
		return
	}

	if err := tm.store.UpdateProgress(ctx, id, JobStatusUploading, 0.95, "Uploading quiz..."); err != nil {
		log.WarnContext(ctx, "Update progress failed", "error", err)
	}
	key, url, err := tm.storage.Upload(ctx, id, data)
	if err != nil {
		fail("Upload failed", err)
		return
	}

	if err := tm.store.CompleteJob(ctx, id, q, string(data), key, url); err != nil {
		log.ErrorContext(ctx, "Complete job failed", "error", err)
	}

	span.SetAttributes(
		attribute.Int("questions", len(q.Questions)),
		attribute.Bool("shortfall", q.Shortfall()),
		attribute.String("quiz_url", url),
	)
	span.SetStatus(codes.Ok, "complete")
	log.InfoContext(ctx, "Pipeline complete",
		"questions", len(q.Questions), "requested", q.Requested, "skipped", res.Skipped,
		"quiz_url", url, "elapsed", time.Since(pipelineStart).Round(time.Second).String())
}

// mapStage maps a pipeline progress stage to a job status.
func mapStage(stage progress.Stage) JobStatus {
	switch stage {
	case progress.StageIngest:
		return JobStatusIngesting
	case progress.StageIndex:
		return JobStatusIndexing
	case progress.StageGenerate:
		return JobStatusGenerating
	case progress.StageComplete:
		// The job is complete only once the quiz is stored.
		return JobStatusUploading
	default:
		return JobStatusSubmitted
	}
}
