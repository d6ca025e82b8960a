package quiz

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// Quiz is a generated set of questions on one topic.
type Quiz struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Requested int        `json:"requested"`
	Questions []Question `json:"questions"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}

// Shortfall reports whether fewer questions than requested were produced.
func (q *Quiz) Shortfall() bool {
	return len(q.Questions) < q.Requested
}

// NewQuizID generates a ULID for a new quiz.
func NewQuizID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

func SaveQuiz(q *Quiz, path string) error {
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write quiz to %s: %w", path, err)
	}
	return nil
}

func LoadQuiz(path string) (*Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quiz from %s: %w", path, err)
	}
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse quiz from %s: %w", path, err)
	}
	if len(q.Questions) == 0 {
		return nil, fmt.Errorf("quiz %s has no questions", path)
	}
	return &q, nil
}
