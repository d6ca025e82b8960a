package llm

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("New", func() {
	It("lists every backend's models in order", func() {
		Expect(Names()).To(Equal([]string{"gemini-flash", "gemini-pro", "haiku", "nova-lite", "sonnet"}))
	})

	It("rejects unknown model names", func() {
		_, err := New(context.Background(), "gpt-9")
		Expect(err).To(MatchError(ContainSubstring(`unknown model "gpt-9"`)))
	})

	It("defaults to Claude Haiku", func() {
		m, err := New(context.Background(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(BeAssignableToTypeOf(&Claude{}))
	})

	It("requires a Gemini API key", func() {
		GinkgoT().Setenv("GEMINI_API_KEY", "")
		_, err := New(context.Background(), "gemini-pro")
		Expect(err).To(MatchError(ContainSubstring("GEMINI_API_KEY")))
	})
})

var _ = Describe("withRetry", func() {
	It("returns the first non-empty response", func() {
		calls := 0
		text, err := withRetry(context.Background(), "Test", func(context.Context) (string, error) {
			calls++
			return "{}", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("{}"))
		Expect(calls).To(Equal(1))
	})

	It("stops retrying when the context ends during backoff", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		calls := 0
		_, err := withRetry(ctx, "Test", func(context.Context) (string, error) {
			calls++
			return "", errors.New("overloaded")
		})
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(calls).To(Equal(1))
	})

	It("does not call a model with a finished context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := withRetry(ctx, "Test", func(context.Context) (string, error) {
			Fail("model called")
			return "", nil
		})
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("response text", func() {
	It("joins Gemini text parts", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
		}}}
		Expect(geminiText(resp)).To(Equal(`{"a":1}`))
		Expect(geminiText(&genai.GenerateContentResponse{})).To(BeEmpty())
		Expect(geminiText(nil)).To(BeEmpty())
	})

	It("takes the first Nova text block", func() {
		resp := &bedrockruntime.ConverseOutput{Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "hello"},
			}},
		}}
		Expect(extractNovaText(resp)).To(Equal("hello"))
		Expect(extractNovaText(&bedrockruntime.ConverseOutput{})).To(BeEmpty())
	})
})
