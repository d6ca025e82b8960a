package progress

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BarRenderer", func() {
	var (
		file *os.File
		r    *BarRenderer
	)

	BeforeEach(func() {
		var err error
		file, err = os.Create(filepath.Join(GinkgoT().TempDir(), "out.txt"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(file.Close)
		r = NewBarRenderer(file)
	})

	output := func() string {
		data, err := os.ReadFile(file.Name())
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	It("prints plain lines when not writing to a terminal", func() {
		Expect(r.isTTY).To(BeFalse())

		r.Handle(Event{Stage: StageIngest, Message: "Total number of pages processed: 3"})
		r.Handle(Event{Stage: StageComplete, Message: "Quiz ready: 5 questions", OutputFile: "out/quiz.json", Questions: 5})
		r.Finish()

		out := output()
		Expect(out).To(ContainSubstring("[0:00] Total number of pages processed: 3\n"))
		Expect(out).To(ContainSubstring("Quiz saved to out/quiz.json (5 questions"))
		Expect(out).NotTo(ContainSubstring("Warning"))
	})

	It("prints every per-file update in plain mode", func() {
		r.Handle(Event{Stage: StageIngest, Message: "Ingested a.pdf (3 pages)", Current: 1, Total: 2})
		r.Handle(Event{Stage: StageIngest, Message: "Ingested b.pdf (1 pages)", Current: 2, Total: 2})
		r.Finish()

		out := output()
		Expect(out).To(ContainSubstring("[0:00] Ingested a.pdf (3 pages)\n"))
		Expect(out).To(ContainSubstring("[0:00] Ingested b.pdf (1 pages)\n"))
	})

	It("warns about a shortfall", func() {
		r.Handle(Event{Stage: StageComplete, Message: "Quiz ready: 2 of 5 questions", Questions: 2, Shortfall: true})
		r.Finish()

		out := output()
		Expect(out).To(ContainSubstring("Quiz ready: 2 of 5 questions"))
		Expect(out).To(ContainSubstring("Warning: fewer than requested questions were produced"))
	})

	It("reports the error of a failed run", func() {
		r.Handle(Event{Stage: StageIndex, Message: "failed", Error: errors.New("no documents found")})
		r.Finish()

		Expect(output()).To(ContainSubstring("Error: no documents found"))
	})

	It("prints nothing extra when the run did not finish", func() {
		r.Handle(Event{Stage: StageGenerate, Message: "Generating questions (1/5)"})
		r.Finish()

		Expect(output()).To(Equal("[0:00] Generating questions (1/5)\n"))
	})
})

var _ = DescribeTable("renderBar",
	func(pct float64, want string) {
		Expect(renderBar(pct, 10)).To(Equal(want))
	},
	Entry("empty", 0.0, "[..........]"),
	Entry("half", 0.5, "[#####.....]"),
	Entry("full", 1.0, "[##########]"),
	Entry("clamped low", -1.0, "[..........]"),
	Entry("clamped high", 2.0, "[##########]"),
)

var _ = DescribeTable("formatElapsed",
	func(d time.Duration, want string) {
		Expect(formatElapsed(d)).To(Equal(want))
	},
	Entry("seconds", 7*time.Second, "0:07"),
	Entry("minutes", 125*time.Second, "2:05"),
)

var _ = Describe("Recorder", func() {
	It("keeps messages in order", func() {
		var rec Recorder
		rec.Handle(NewEvent(StageIngest, "first", 0, time.Now()))
		rec.Handle(NewEvent(StageIndex, "second", 1, time.Now()))
		Expect(rec.Messages()).To(Equal([]string{"first", "second"}))
	})
})
