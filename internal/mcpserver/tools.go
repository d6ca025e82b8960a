package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/quizzify/internal/ingest"
	"github.com/apresai/quizzify/internal/llm"
	"github.com/apresai/quizzify/internal/quiz"
)

var tracer = otel.Tracer("quizzify-mcp")

// maxUploadBytes caps the decoded size of all files in one request.
const maxUploadBytes = 50 * 1024 * 1024

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_quiz",
			Description: "Generate a multiple-choice quiz from uploaded PDF or text documents and/or web pages. Starts an async task and returns a quiz ID. Use get_quiz to check progress.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"files": map[string]any{
						"type":        "array",
						"description": "Documents to build the quiz from, in order",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"name": map[string]any{
									"type":        "string",
									"description": "File name including extension, e.g. chapter1.pdf",
								},
								"content_base64": map[string]any{
									"type":        "string",
									"description": "File bytes, base64 encoded",
								},
							},
							"required": []string{"name", "content_base64"},
						},
					},
					"urls": map[string]any{
						"type":        "array",
						"description": "Web pages to include as documents",
						"items":       map[string]any{"type": "string"},
					},
					"topic": map[string]any{
						"type":        "string",
						"description": "Quiz topic",
						"default":     quiz.DefaultTopic,
					},
					"num_questions": map[string]any{
						"type":        "integer",
						"description": fmt.Sprintf("Number of questions (1-%d)", quiz.MaxQuestions),
						"default":     5,
					},
					"model": map[string]any{
						"type":        "string",
						"description": "Question generation model: " + strings.Join(llm.Names(), ", "),
						"default":     llm.DefaultModel,
					},
					"failure_policy": map[string]any{
						"type":        "string",
						"description": "What to do with a document that cannot be read: fail-fast or skip",
						"default":     "fail-fast",
					},
				},
			},
		},
		{
			Name:        "get_quiz",
			Description: "Get the status of a quiz by ID. Completed quizzes include their questions, choices, answers and explanations.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"quiz_id": map[string]any{
						"type":        "string",
						"description": "The quiz ID returned from generate_quiz",
					},
				},
				Required: []string{"quiz_id"},
			},
		},
		{
			Name:        "list_quizzes",
			Description: "List generated quizzes, newest first. Returns quiz IDs, topics, status and question counts.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
					"cursor": map[string]any{
						"type":        "string",
						"description": "Pagination cursor from a previous list_quizzes call",
					},
				},
			},
		},
	}
}

// taskStarter is the part of TaskManager the handlers use.
type taskStarter interface {
	StartTask(ctx context.Context, req GenerateRequest) (string, error)
}

// Handlers contains tool handler implementations.
type Handlers struct {
	tasks taskStarter
	store JobStore
	log   *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(tasks taskStarter, store JobStore, logger *slog.Logger) *Handlers {
	return &Handlers{tasks: tasks, store: store, log: logger}
}

// HandleGenerateQuiz starts a quiz generation task.
func (h *Handlers) HandleGenerateQuiz(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_quiz")
	defer span.End()

	files, err := parseFiles(req)
	if err != nil {
		span.SetStatus(codes.Error, "invalid files")
		return mcp.NewToolResultError(err.Error()), nil
	}
	policy, err := ingest.ParseFailurePolicy(mcp.ParseString(req, "failure_policy", ""))
	if err != nil {
		span.SetStatus(codes.Error, "invalid failure policy")
		return mcp.NewToolResultError(err.Error()), nil
	}

	genReq := GenerateRequest{
		Files:         files,
		URLs:          parseStrings(req, "urls"),
		Topic:         mcp.ParseString(req, "topic", ""),
		NumQuestions:  parseIntParam(req, "num_questions", 5),
		Model:         mcp.ParseString(req, "model", llm.DefaultModel),
		FailurePolicy: policy,
		Owner:         "mcp-server",
	}

	span.SetAttributes(
		attribute.Int("files", len(genReq.Files)),
		attribute.Int("urls", len(genReq.URLs)),
		attribute.String("topic", genReq.Topic),
		attribute.Int("num_questions", genReq.NumQuestions),
		attribute.String("model", genReq.Model),
	)

	if len(genReq.Files) == 0 && len(genReq.URLs) == 0 {
		span.SetStatus(codes.Error, "missing input")
		return mcp.NewToolResultError("at least one of files or urls is required"), nil
	}
	if genReq.NumQuestions < 1 || genReq.NumQuestions > quiz.MaxQuestions {
		span.SetStatus(codes.Error, "invalid num_questions")
		return mcp.NewToolResultError(fmt.Sprintf("num_questions must be between 1 and %d", quiz.MaxQuestions)), nil
	}

	id, err := h.tasks.StartTask(ctx, genReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start task: %v", err)), nil
	}

	span.SetAttributes(attribute.String("quiz_id", id))
	h.log.InfoContext(ctx, "Quiz generation started", "quiz_id", id, "model", genReq.Model)

	return jsonResult(map[string]any{
		"quiz_id": id,
		"status":  "submitted",
		"message": "Quiz generation started. Use get_quiz with this quiz_id to check progress.",
	})
}

// HandleGetQuiz returns quiz status and, once complete, the quiz itself.
func (h *Handlers) HandleGetQuiz(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_quiz")
	defer span.End()

	id := mcp.ParseString(req, "quiz_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing quiz_id")
		return mcp.NewToolResultError("quiz_id is required"), nil
	}
	span.SetAttributes(attribute.String("quiz_id", id))

	item, err := h.store.GetQuiz(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get quiz failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to get quiz: %v", err)), nil
	}
	if item == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("quiz %s not found", id)), nil
	}

	result := map[string]any{
		"quiz_id":          item.QuizID,
		"status":           item.Status,
		"progress_percent": item.ProgressPercent,
		"stage_message":    item.StageMessage,
		"created_at":       item.CreatedAt,
	}
	if item.Topic != "" {
		result["topic"] = item.Topic
	}
	if item.Model != "" {
		result["model"] = item.Model
	}
	if len(item.Files) > 0 {
		result["files"] = item.Files
	}
	if item.ErrorMessage != "" {
		result["error"] = item.ErrorMessage
	}
	if item.QuizURL != "" {
		result["quiz_url"] = item.QuizURL
	}
	if item.Status == string(JobStatusComplete) {
		result["question_count"] = item.QuestionCount
		result["requested"] = item.Requested
		if item.Shortfall {
			result["warning"] = quiz.ErrExhausted.Error()
		}
		if item.QuizJSON != "" {
			var q quiz.Quiz
			if err := json.Unmarshal([]byte(item.QuizJSON), &q); err != nil {
				h.log.WarnContext(ctx, "Stored quiz is not valid JSON", "quiz_id", id, "error", err)
			} else {
				result["questions"] = q.Questions
			}
		}
	}

	return jsonResult(result)
}

// HandleListQuizzes returns a paginated list of quizzes.
func (h *Handlers) HandleListQuizzes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_quizzes")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	cursor := mcp.ParseString(req, "cursor", "")

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("cursor", cursor),
	)

	items, nextCursor, err := h.store.ListQuizzes(ctx, limit, cursor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list quizzes failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list quizzes: %v", err)), nil
	}

	span.SetAttributes(attribute.Int("result_count", len(items)))

	quizzes := make([]map[string]any, 0, len(items))
	for _, item := range items {
		q := map[string]any{
			"quiz_id":    item.QuizID,
			"status":     item.Status,
			"created_at": item.CreatedAt,
		}
		if item.Topic != "" {
			q["topic"] = item.Topic
		}
		if item.QuestionCount > 0 {
			q["question_count"] = item.QuestionCount
		}
		if item.QuizURL != "" {
			q["quiz_url"] = item.QuizURL
		}
		quizzes = append(quizzes, q)
	}

	result := map[string]any{
		"quizzes": quizzes,
		"count":   len(quizzes),
	}
	if nextCursor != "" {
		result["next_cursor"] = nextCursor
	}

	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

func parseStrings(req mcp.CallToolRequest, key string) []string {
	raw, _ := req.GetArguments()[key].([]any)
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// parseFiles decodes the files argument, keeping request order.
func parseFiles(req mcp.CallToolRequest) ([]ingest.UploadedFile, error) {
	raw, ok := req.GetArguments()["files"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("files must be an array")
	}

	files := make([]ingest.UploadedFile, 0, len(list))
	total := 0
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("files[%d] must be an object", i)
		}
		name, _ := obj["name"].(string)
		content, _ := obj["content_base64"].(string)
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("files[%d].name is required", i)
		}
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("files[%d] (%s): invalid base64: %v", i, name, err)
		}
		total += len(data)
		if total > maxUploadBytes {
			return nil, fmt.Errorf("files exceed the %d MB request limit", maxUploadBytes/(1024*1024))
		}
		files = append(files, ingest.UploadedFile{Name: name, Data: data})
	}
	return files, nil
}
