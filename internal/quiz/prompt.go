package quiz

import (
	"fmt"
	"strings"
)

const systemTemplate = `You are a subject matter expert on the topic: %s

Follow the instructions to create a quiz question:
1. Generate a question based on the topic provided and context as key "question"
2. Provide 4 multiple choice answers to the question as a list of key-value pairs "choices"
3. Provide the correct answer for the question from the list of answers as key "answer"
4. Provide an explanation as to why the answer is correct as key "explanation"

You must respond as a JSON object with the following structure:
{
    "question": "<question>",
    "choices": [
        {"key": "A", "value": "<choice>"},
        {"key": "B", "value": "<choice>"},
        {"key": "C", "value": "<choice>"},
        {"key": "D", "value": "<choice>"}
    ],
    "answer": "<answer key from choices list>",
    "explanation": "<explanation as to why the answer is correct>"
}

IMPORTANT: Output raw JSON only. No markdown code fences. No text before or after the JSON.`

func buildSystemPrompt(topic string) string {
	return fmt.Sprintf(systemTemplate, topic)
}

func buildUserPrompt(topic string, context []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create one new quiz question about: %s\n\n", topic)
	sb.WriteString("Context:\n")
	if len(context) == 0 {
		sb.WriteString("(no context retrieved)\n")
	}
	for i, c := range context {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, strings.TrimSpace(c))
	}
	return sb.String()
}
