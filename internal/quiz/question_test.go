package quiz_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/quiz"
)

const photosynthesisJSON = `{
  "question": "Which organelle carries out photosynthesis?",
  "choices": [
    {"key": "A", "value": "Mitochondrion"},
    {"key": "B", "value": "Chloroplast"},
    {"key": "C", "value": "Ribosome"},
    {"key": "D", "value": "Nucleus"}
  ],
  "answer": "B",
  "explanation": "Chloroplasts contain chlorophyll."
}`

func sampleQuestion() quiz.Question {
	q, err := quiz.ParseQuestion(photosynthesisJSON)
	Expect(err).NotTo(HaveOccurred())
	return q
}

var _ = Describe("ParseQuestion", func() {
	It("parses raw JSON", func() {
		q := sampleQuestion()
		Expect(q.Question).To(Equal("Which organelle carries out photosynthesis?"))
		Expect(q.Choices).To(HaveLen(4))
		Expect(q.Answer).To(Equal("B"))
	})

	It("strips markdown fences", func() {
		q, err := quiz.ParseQuestion("```json\n" + photosynthesisJSON + "\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Answer).To(Equal("B"))
	})

	It("ignores prose around the object", func() {
		q, err := quiz.ParseQuestion("Here is your question:\n" + photosynthesisJSON + "\nGood luck!")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Choices[1].Value).To(Equal("Chloroplast"))
	})

	It("fails on output without JSON", func() {
		_, err := quiz.ParseQuestion("I cannot help with that.")
		Expect(err).To(HaveOccurred())
	})

	It("fails on an empty response", func() {
		_, err := quiz.ParseQuestion("   ")
		Expect(err).To(MatchError(ContainSubstring("no JSON content")))
	})

	It("rejects a question with empty text", func() {
		_, err := quiz.ParseQuestion(`{"question": "  ", "choices": [
			{"key":"A","value":"1"},{"key":"B","value":"2"},{"key":"C","value":"3"},{"key":"D","value":"4"}],
			"answer": "A"}`)
		Expect(err).To(MatchError(ContainSubstring("invalid question")))
	})
})

var _ = Describe("Question", func() {
	It("validates a well formed question", func() {
		Expect(sampleQuestion().Validate()).To(Succeed())
	})

	It("requires four choices", func() {
		q := sampleQuestion()
		q.Choices = q.Choices[:3]
		Expect(q.Validate()).To(MatchError(ContainSubstring("Choices")))
	})

	It("rejects duplicate choice keys", func() {
		q := sampleQuestion()
		q.Choices[3].Key = "a"
		Expect(q.Validate()).To(MatchError(ContainSubstring("duplicate choice key")))
	})

	It("requires the answer to name a choice", func() {
		q := sampleQuestion()
		q.Answer = "E"
		Expect(q.Validate()).To(MatchError(ContainSubstring("not one of the choice keys")))
	})

	It("checks answers by key or formatted option", func() {
		q := sampleQuestion()
		Expect(q.IsCorrect("B")).To(BeTrue())
		Expect(q.IsCorrect("b")).To(BeTrue())
		Expect(q.IsCorrect("B) Chloroplast")).To(BeTrue())
		Expect(q.IsCorrect("A")).To(BeFalse())
	})

	It("renders options in order", func() {
		Expect(sampleQuestion().Options()).To(Equal([]string{
			"A) Mitochondrion", "B) Chloroplast", "C) Ribosome", "D) Nucleus",
		}))
	})

	DescribeTable("QuestionKey",
		func(a, b string, same bool) {
			ka := quiz.QuestionKey(quiz.Question{Question: a})
			kb := quiz.QuestionKey(quiz.Question{Question: b})
			if same {
				Expect(ka).To(Equal(kb))
			} else {
				Expect(ka).NotTo(Equal(kb))
			}
		},
		Entry("case", "What is DNA?", "what is dna?", true),
		Entry("whitespace", "What  is\tDNA?", "What is DNA?", true),
		Entry("trailing punctuation", "What is DNA?", "What is DNA", true),
		Entry("different text", "What is DNA?", "What is RNA?", false),
	)

	It("gives blank question text an empty key", func() {
		Expect(quiz.QuestionKey(quiz.Question{Question: " \n "})).To(BeEmpty())
	})
})
