package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/mcpserver"
	"github.com/apresai/quizzify/internal/quiz"
)

type stubJobs struct {
	created   []string
	completed []string
	failed    []string
}

func (s *stubJobs) CreateJob(_ context.Context, id, _ string, _ mcpserver.GenerateRequest) error {
	s.created = append(s.created, id)
	return nil
}

func (s *stubJobs) UpdateProgress(context.Context, string, mcpserver.JobStatus, float64, string) error {
	return nil
}

func (s *stubJobs) CompleteJob(_ context.Context, id string, _ *quiz.Quiz, _, _, _ string) error {
	s.completed = append(s.completed, id)
	return nil
}

func (s *stubJobs) FailJob(_ context.Context, id, _ string) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubJobs) GetQuiz(context.Context, string) (*mcpserver.QuizItem, error) { return nil, nil }

func (s *stubJobs) ListQuizzes(context.Context, int, string) ([]mcpserver.QuizItem, string, error) {
	return nil, "", nil
}

type stubUploader struct {
	err error
}

func (u stubUploader) Upload(_ context.Context, id string, _ []byte) (string, string, error) {
	if u.err != nil {
		return "", "", u.err
	}
	return "quizzes/" + id + ".json", "https://cdn.test/quizzes/" + id + ".json", nil
}

var _ = Describe("publish", func() {
	var (
		path string
		jobs *stubJobs
		logf func(string, ...any)
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "quiz.json")
		Expect(quiz.SaveQuiz(testQuiz, path)).To(Succeed())
		jobs = &stubJobs{}
		logf = func(format string, a ...any) { fmt.Fprintf(GinkgoWriter, format, a...) }
	})

	It("records, uploads and confirms the quiz", func() {
		p := publisher{store: jobs, storage: stubUploader{}}
		url, err := p.publish(context.Background(), path, "me", logf)
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("https://cdn.test/quizzes/01TEST.json"))
		Expect(jobs.created).To(Equal([]string{"01TEST"}))
		Expect(jobs.completed).To(Equal([]string{"01TEST"}))
	})

	It("marks the record failed when the upload fails", func() {
		saved := publishBackoffs
		publishBackoffs = nil
		DeferCleanup(func() { publishBackoffs = saved })

		p := publisher{store: jobs, storage: stubUploader{err: errors.New("denied")}}
		_, err := p.publish(context.Background(), path, "me", logf)
		Expect(err).To(MatchError(ContainSubstring("denied")))
		Expect(jobs.failed).To(Equal([]string{"01TEST"}))
		Expect(jobs.completed).To(BeEmpty())
	})

	It("rejects a missing file", func() {
		p := publisher{store: jobs, storage: stubUploader{}}
		_, err := p.publish(context.Background(), filepath.Join(GinkgoT().TempDir(), "none.json"), "me", logf)
		Expect(err).To(MatchError(ContainSubstring("cannot access file")))
		Expect(jobs.created).To(BeEmpty())
	})
})
