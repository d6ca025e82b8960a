package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Choice is one lettered answer option.
type Choice struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Question is a single multiple-choice question as returned by the model.
type Question struct {
	Question    string   `json:"question" validate:"required"`
	Choices     []Choice `json:"choices" validate:"len=4,dive"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the question shape: non-empty text, four choices with
// distinct keys, and an answer that names one of them.
func (q Question) Validate() error {
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid question: field %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid question: %w", err)
	}

	seen := make(map[string]bool, len(q.Choices))
	for _, c := range q.Choices {
		k := strings.ToUpper(strings.TrimSpace(c.Key))
		if seen[k] {
			return fmt.Errorf("invalid question: duplicate choice key %q", c.Key)
		}
		seen[k] = true
	}
	if _, ok := q.CorrectChoice(); !ok {
		return fmt.Errorf("invalid question: answer %q is not one of the choice keys", q.Answer)
	}
	return nil
}

// CorrectChoice returns the choice named by Answer.
func (q Question) CorrectChoice() (Choice, bool) {
	for _, c := range q.Choices {
		if sameKey(c.Key, q.Answer) {
			return c, true
		}
	}
	return Choice{}, false
}

// IsCorrect reports whether key selects the correct choice. A formatted option
// such as "B) Paris" is accepted as well as a bare key.
func (q Question) IsCorrect(key string) bool {
	key = strings.TrimSpace(key)
	if i := strings.Index(key, ")"); i > 0 {
		key = key[:i]
	}
	return sameKey(key, q.Answer)
}

// Options renders the choices as "A) value" lines in their original order.
func (q Question) Options() []string {
	out := make([]string, len(q.Choices))
	for i, c := range q.Choices {
		out[i] = fmt.Sprintf("%s) %s", c.Key, c.Value)
	}
	return out
}

func sameKey(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// QuestionKey is the uniqueness rule for the question bank: question text
// lowercased, whitespace collapsed and trailing punctuation dropped. An empty
// key marks a question that must not be accepted.
func QuestionKey(q Question) string {
	return NormalizeText(q.Question)
}

func NormalizeText(s string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRight(joined, "?.!:; ")
}
