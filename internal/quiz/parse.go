package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// ParseQuestion extracts and validates a single question from raw model output.
// Markdown fences and any prose around the JSON object are ignored.
func ParseQuestion(text string) (Question, error) {
	text = stripMarkdownFences(text)
	text = strings.TrimSpace(extractJSON(text))
	if text == "" {
		return Question{}, fmt.Errorf("no JSON content found in response")
	}

	var q Question
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		return Question{}, fmt.Errorf("failed to decode question JSON: %w\nRaw text (first 300 chars): %s", err, truncate(text, 300))
	}

	q.Question = strings.TrimSpace(q.Question)
	q.Answer = strings.TrimSpace(q.Answer)
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

func stripMarkdownFences(text string) string {
	if matches := fenceRe.FindStringSubmatch(text); len(matches) > 1 {
		return matches[1]
	}
	return text
}

func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
