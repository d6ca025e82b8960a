package mcpserver_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/ingest"
	"github.com/apresai/quizzify/internal/mcpserver"
	"github.com/apresai/quizzify/internal/quiz"
)

type recordingStarter struct {
	reqs []mcpserver.GenerateRequest
	id   string
	err  error
}

func (r *recordingStarter) StartTask(_ context.Context, req mcpserver.GenerateRequest) (string, error) {
	r.reqs = append(r.reqs, req)
	return r.id, r.err
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(res *mcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

func resultJSON(res *mcp.CallToolResult, err error) map[string]any {
	Expect(err).NotTo(HaveOccurred())
	Expect(res.IsError).To(BeFalse(), resultText(res))
	var out map[string]any
	Expect(json.Unmarshal([]byte(resultText(res)), &out)).To(Succeed())
	return out
}

var _ = Describe("Handlers", func() {
	var (
		starter  *recordingStarter
		store    *memJobStore
		handlers *mcpserver.Handlers
		ctx      context.Context
	)

	BeforeEach(func() {
		starter = &recordingStarter{id: "01JABCDEFGHJKMNPQRSTVWXYZ0"}
		store = newMemJobStore()
		handlers = mcpserver.NewHandlers(starter, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
		ctx = context.Background()
	})

	It("defines the three quiz tools", func() {
		var names []string
		for _, t := range mcpserver.ToolDefs() {
			names = append(names, t.Name)
		}
		Expect(names).To(Equal([]string{"generate_quiz", "get_quiz", "list_quizzes"}))
	})

	Describe("generate_quiz", func() {
		It("decodes files in order and starts a task", func() {
			res, err := handlers.HandleGenerateQuiz(ctx, callTool(map[string]any{
				"files": []any{
					map[string]any{"name": "a.pdf", "content_base64": base64.StdEncoding.EncodeToString([]byte("%PDF-a"))},
					map[string]any{"name": "b.txt", "content_base64": base64.StdEncoding.EncodeToString([]byte("b"))},
				},
				"urls":           []any{"https://example.com/article", "  "},
				"topic":          "Physics",
				"num_questions":  float64(4),
				"model":          "sonnet",
				"failure_policy": "skip",
			}))
			out := resultJSON(res, err)
			Expect(out["quiz_id"]).To(Equal(starter.id))
			Expect(out["status"]).To(Equal("submitted"))

			Expect(starter.reqs).To(HaveLen(1))
			req := starter.reqs[0]
			Expect(req.Files).To(Equal([]ingest.UploadedFile{
				{Name: "a.pdf", Data: []byte("%PDF-a")},
				{Name: "b.txt", Data: []byte("b")},
			}))
			Expect(req.URLs).To(Equal([]string{"https://example.com/article"}))
			Expect(req.Topic).To(Equal("Physics"))
			Expect(req.NumQuestions).To(Equal(4))
			Expect(req.Model).To(Equal("sonnet"))
			Expect(req.FailurePolicy).To(Equal(ingest.SkipFailed))
		})

		It("applies defaults", func() {
			_, err := handlers.HandleGenerateQuiz(ctx, callTool(map[string]any{
				"urls": []any{"https://example.com"},
			}))
			Expect(err).NotTo(HaveOccurred())
			req := starter.reqs[0]
			Expect(req.NumQuestions).To(Equal(5))
			Expect(req.Model).To(Equal("haiku"))
			Expect(req.FailurePolicy).To(Equal(ingest.FailFast))
		})

		DescribeTable("rejects invalid requests without starting a task",
			func(args map[string]any, msg string) {
				res, err := handlers.HandleGenerateQuiz(ctx, callTool(args))
				Expect(err).NotTo(HaveOccurred())
				Expect(res.IsError).To(BeTrue())
				Expect(resultText(res)).To(ContainSubstring(msg))
				Expect(starter.reqs).To(BeEmpty())
			},
			Entry("no input", map[string]any{}, "at least one of files or urls is required"),
			Entry("bad base64", map[string]any{
				"files": []any{map[string]any{"name": "x.pdf", "content_base64": "!!!"}},
			}, "invalid base64"),
			Entry("missing name", map[string]any{
				"files": []any{map[string]any{"content_base64": ""}},
			}, "files[0].name is required"),
			Entry("too many questions", map[string]any{
				"urls": []any{"https://example.com"}, "num_questions": float64(11),
			}, "num_questions must be between 1 and 10"),
			Entry("zero questions", map[string]any{
				"urls": []any{"https://example.com"}, "num_questions": float64(0),
			}, "num_questions must be between 1 and 10"),
			Entry("unknown failure policy", map[string]any{
				"urls": []any{"https://example.com"}, "failure_policy": "retry",
			}, "invalid failure policy"),
		)
	})

	Describe("get_quiz", func() {
		It("requires a quiz_id", func() {
			res, _ := handlers.HandleGetQuiz(ctx, callTool(map[string]any{}))
			Expect(res.IsError).To(BeTrue())
		})

		It("reports unknown quizzes", func() {
			res, _ := handlers.HandleGetQuiz(ctx, callTool(map[string]any{"quiz_id": "nope"}))
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(ContainSubstring("quiz nope not found"))
		})

		It("shows progress for running jobs", func() {
			Expect(store.CreateJob(ctx, "q1", "me", mcpserver.GenerateRequest{Topic: "Math", NumQuestions: 2})).To(Succeed())
			Expect(store.UpdateProgress(ctx, "q1", mcpserver.JobStatusGenerating, 0.5, "Generating questions (1/2)")).To(Succeed())

			out := resultJSON(handlers.HandleGetQuiz(ctx, callTool(map[string]any{"quiz_id": "q1"})))
			Expect(out["status"]).To(Equal("generating"))
			Expect(out["progress_percent"]).To(Equal(0.5))
			Expect(out).NotTo(HaveKey("questions"))
		})

		It("includes the questions of a complete quiz", func() {
			q := &quiz.Quiz{ID: "q2", Topic: "Math", Requested: 2, Questions: []quiz.Question{{
				Question: "What is 2+2?",
				Choices:  []quiz.Choice{{Key: "A", Value: "3"}, {Key: "B", Value: "4"}, {Key: "C", Value: "5"}, {Key: "D", Value: "6"}},
				Answer:   "B",
			}}}
			data, _ := json.Marshal(q)
			Expect(store.CreateJob(ctx, "q2", "me", mcpserver.GenerateRequest{Topic: "Math", NumQuestions: 2})).To(Succeed())
			Expect(store.CompleteJob(ctx, "q2", q, string(data), "quizzes/q2.json", "https://cdn.test/quizzes/q2.json")).To(Succeed())

			out := resultJSON(handlers.HandleGetQuiz(ctx, callTool(map[string]any{"quiz_id": "q2"})))
			Expect(out["status"]).To(Equal("complete"))
			Expect(out["quiz_url"]).To(Equal("https://cdn.test/quizzes/q2.json"))
			Expect(out["question_count"]).To(BeEquivalentTo(1))
			Expect(out["warning"]).To(Equal("fewer than requested questions were produced"))
			Expect(out["questions"]).To(HaveLen(1))
		})
	})

	Describe("list_quizzes", func() {
		It("lists newest first with a cursor", func() {
			for _, id := range []string{"q1", "q2", "q3"} {
				Expect(store.CreateJob(ctx, id, "me", mcpserver.GenerateRequest{Topic: "T"})).To(Succeed())
			}

			out := resultJSON(handlers.HandleListQuizzes(ctx, callTool(map[string]any{"limit": float64(2)})))
			Expect(out["count"]).To(BeEquivalentTo(2))
			Expect(out["next_cursor"]).To(Equal("q1"))
			quizzes := out["quizzes"].([]any)
			Expect(quizzes[0].(map[string]any)["quiz_id"]).To(Equal("q3"))
		})
	})
})
