package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/quizzify/internal/quiz"
)

var flagShowAnswers bool

var showCmd = &cobra.Command{
	Use:   "show <quiz.json>",
	Short: "Print a saved quiz",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := quiz.LoadQuiz(args[0])
		if err != nil {
			return err
		}
		return printQuiz(cmd.OutOrStdout(), q, flagShowAnswers)
	},
}

var takeCmd = &cobra.Command{
	Use:   "take <quiz.json>",
	Short: "Answer a saved quiz in the terminal",
	Long: `Answer a saved quiz one question at a time. Type a choice letter to answer,
"n" or "p" to move to the next or previous question, and "q" to finish.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := quiz.LoadQuiz(args[0])
		if err != nil {
			return err
		}
		return takeQuiz(cmd.InOrStdin(), cmd.OutOrStdout(), q)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(takeCmd)
	showCmd.Flags().BoolVarP(&flagShowAnswers, "answers", "a", false, "Include answers and explanations")
}

func printQuestion(w io.Writer, n, total int, q quiz.Question) {
	fmt.Fprintf(w, "\nQuestion %d of %d: %s\n", n, total, q.Question)
	for _, c := range q.Choices {
		fmt.Fprintf(w, "  %s) %s\n", c.Key, c.Value)
	}
}

func printQuiz(w io.Writer, q *quiz.Quiz, answers bool) error {
	m := quiz.NewManager(q.Questions)
	if m.Total() == 0 {
		return quiz.ErrEmptyQuiz
	}

	fmt.Fprintf(w, "Quiz %s: %s (%d questions)\n", q.ID, q.Topic, m.Total())
	for i := 0; i < m.Total(); i++ {
		question, err := m.QuestionAt(i)
		if err != nil {
			return err
		}
		printQuestion(w, i+1, m.Total(), question)
		if answers {
			fmt.Fprintf(w, "  Answer: %s\n", question.Answer)
			if question.Explanation != "" {
				fmt.Fprintf(w, "  Explanation: %s\n", question.Explanation)
			}
		}
	}
	return nil
}

// takeQuiz runs an answer loop over r until input ends or the user quits,
// then prints the score.
func takeQuiz(r io.Reader, w io.Writer, q *quiz.Quiz) error {
	m := quiz.NewManager(q.Questions)
	if m.Total() == 0 {
		return quiz.ErrEmptyQuiz
	}
	s := quiz.NewSession()
	scanner := bufio.NewScanner(r)

	show := func() error {
		question, err := m.QuestionAt(s.Index)
		if err != nil {
			return err
		}
		printQuestion(w, s.Index+1, m.Total(), question)
		fmt.Fprint(w, "> ")
		return nil
	}

	if err := show(); err != nil {
		return err
	}
loop:
	for scanner.Scan() {
		input := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		switch input {
		case "":
			fmt.Fprint(w, "> ")
			continue
		case "Q":
			break loop
		case "N":
			if err := m.Next(s, 1); err != nil {
				return err
			}
		case "P":
			if err := m.Next(s, -1); err != nil {
				return err
			}
		default:
			_, feedback, err := m.Answer(s, input)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, feedback)
			if len(s.Answers) == m.Total() {
				break loop
			}
			if err := m.Next(s, 1); err != nil {
				return err
			}
		}
		if err := show(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read answers: %w", err)
	}

	fmt.Fprintf(w, "\nScore: %d of %d (%d answered)\n", s.Score(), m.Total(), len(s.Answers))
	return nil
}
