package quiz

import (
	"errors"
	"fmt"
)

var ErrEmptyQuiz = errors.New("quiz has no questions")

// Session is the per-user state of someone taking a quiz. It is created when
// the interaction starts and only changed through Manager methods.
type Session struct {
	Index   int
	Answers map[int]string
	Correct map[int]bool
}

func NewSession() *Session {
	return &Session{
		Answers: make(map[int]string),
		Correct: make(map[int]bool),
	}
}

// Score is the number of correctly answered questions.
func (s *Session) Score() int {
	n := 0
	for _, ok := range s.Correct {
		if ok {
			n++
		}
	}
	return n
}

// Manager navigates a fixed list of questions with wrap-around indexing.
type Manager struct {
	questions []Question
}

func NewManager(questions []Question) *Manager {
	return &Manager{questions: questions}
}

func (m *Manager) Total() int { return len(m.questions) }

// QuestionAt returns the question at index, wrapping in both directions.
func (m *Manager) QuestionAt(index int) (Question, error) {
	if len(m.questions) == 0 {
		return Question{}, ErrEmptyQuiz
	}
	return m.questions[m.wrap(index)], nil
}

// Next moves the session by direction (1 forward, -1 back) with wrap-around.
func (m *Manager) Next(s *Session, direction int) error {
	if len(m.questions) == 0 {
		return ErrEmptyQuiz
	}
	s.Index = m.wrap(s.Index + direction)
	return nil
}

// Answer records key for the session's current question and returns whether
// it was correct with a feedback line.
func (m *Manager) Answer(s *Session, key string) (bool, string, error) {
	q, err := m.QuestionAt(s.Index)
	if err != nil {
		return false, "", err
	}
	idx := m.wrap(s.Index)
	correct := q.IsCorrect(key)
	s.Answers[idx] = key
	s.Correct[idx] = correct
	if correct {
		return true, "Correct!", nil
	}
	if c, ok := q.CorrectChoice(); ok {
		return false, fmt.Sprintf("Incorrect! The answer is %s) %s", c.Key, c.Value), nil
	}
	return false, "Incorrect!", nil
}

func (m *Manager) wrap(index int) int {
	n := len(m.questions)
	return ((index % n) + n) % n
}
