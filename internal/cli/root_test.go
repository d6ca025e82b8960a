package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/config"
	"github.com/apresai/quizzify/internal/ingest"
)

var _ = Describe("generate options", func() {
	It("fills unset flags from config", func() {
		f := &generateFlags{topic: "Rivers"}
		mergeConfig(f, &config.Config{Topic: "Lakes", NumQuestions: 7, Model: "sonnet", FailurePolicy: "skip"})
		Expect(f.topic).To(Equal("Rivers"))
		Expect(f.numQuestions).To(Equal(7))
		Expect(f.model).To(Equal("sonnet"))
		Expect(f.failurePolicy).To(Equal("skip"))
	})

	DescribeTable("validation",
		func(f generateFlags, msg string) {
			_, err := validateGenerate(&f)
			if msg == "" {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("valid", generateFlags{inputs: []string{"a.pdf"}, numQuestions: 5, model: "haiku", failurePolicy: "fail-fast"}, ""),
		Entry("no inputs", generateFlags{numQuestions: 5, model: "haiku"}, "at least one --input"),
		Entry("too many questions", generateFlags{inputs: []string{"a.pdf"}, numQuestions: 11, model: "haiku"}, "must be between 1 and 10"),
		Entry("unknown model", generateFlags{inputs: []string{"a.pdf"}, numQuestions: 5, model: "gpt"}, `invalid model "gpt"`),
		Entry("unknown policy", generateFlags{inputs: []string{"a.pdf"}, numQuestions: 5, model: "haiku", failurePolicy: "maybe"}, "invalid failure policy"),
	)

	It("returns the parsed failure policy", func() {
		policy, err := validateGenerate(&generateFlags{inputs: []string{"a.pdf"}, numQuestions: 1, model: "haiku", failurePolicy: "skip"})
		Expect(err).NotTo(HaveOccurred())
		Expect(policy).To(Equal(ingest.SkipFailed))
	})
})

var _ = Describe("setup wizard", func() {
	key := func(m tuiModel, s string) tuiModel {
		var msg tea.KeyMsg
		switch s {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
		}
		next, _ := m.Update(msg)
		return next.(tuiModel)
	}

	start := func() tuiModel {
		return initialTUIModel(&generateFlags{numQuestions: 5, model: "haiku", failurePolicy: "fail-fast"})
	}

	It("requires inputs before generating", func() {
		m := start()
		for m.cursor != idxGenerate {
			m = key(m, "down")
		}
		m = key(m, "enter")
		Expect(m.confirmed).To(BeFalse())
		Expect(m.err).To(MatchError("Inputs is required"))
	})

	It("applies typed inputs and picked options", func() {
		m := start()
		m = key(m, "enter")
		m = key(m, "a.pdf, https://example.com/page")
		m = key(m, "enter") // cursor moves to Output
		m = key(m, "down")  // Topic
		m = key(m, "down")  // Questions
		m = key(m, "enter")
		m = key(m, "down") // 5 -> 6
		m = key(m, "enter")
		Expect(m.items[idxQuestions].value).To(Equal("6"))

		for m.cursor != idxGenerate {
			m = key(m, "down")
		}
		m = key(m, "enter")
		Expect(m.confirmed).To(BeTrue())

		var f generateFlags
		m.apply(&f)
		Expect(f.inputs).To(Equal([]string{"a.pdf", "https://example.com/page"}))
		Expect(f.numQuestions).To(Equal(6))
		Expect(f.model).To(Equal("haiku"))
		Expect(f.failurePolicy).To(Equal("fail-fast"))
	})

	It("quits on q", func() {
		m := key(start(), "q")
		Expect(m.cancelled).To(BeTrue())
	})
})
