package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is matched by errors.Is for any *ExhaustedError.
var ErrExhausted = errors.New("fewer than requested questions were produced")

// ErrInvalidBounds is returned when target or maxAttempts make no sense.
var ErrInvalidBounds = errors.New("target must be positive and max attempts at least target")

// State is where a generation run ended up.
type State int

const (
	Running State = iota
	Succeeded
	Exhausted
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "running"
	}
}

// Outcome classifies a single attempt.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
	OutcomeRejected
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// Attempt describes one call to the producer.
type Attempt struct {
	Number   int
	Accepted int
	Outcome  Outcome
	Err      error
}

// ExhaustedError reports a run that stopped before reaching its target. The
// bank returned alongside it holds the partial result.
type ExhaustedError struct {
	Target   int
	Accepted int
	Attempts int
	// Stalled is set when the run stopped on the consecutive-failure cap
	// rather than on the attempt ceiling.
	Stalled bool
	LastErr error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%v (%d of %d after %d attempts)", ErrExhausted, e.Accepted, e.Target, e.Attempts)
	if e.Stalled {
		msg += ", too many consecutive failures"
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	}
	return msg
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Bank holds accepted items in acceptance order. No two items share a key.
type Bank[T any] struct {
	items    []T
	keys     map[string]struct{}
	attempts int
	state    State
}

func newBank[T any](capacity int) *Bank[T] {
	return &Bank[T]{
		items: make([]T, 0, capacity),
		keys:  make(map[string]struct{}, capacity),
	}
}

// add inserts item under key unless the key is already present.
func (b *Bank[T]) add(key string, item T) bool {
	if _, ok := b.keys[key]; ok {
		return false
	}
	b.keys[key] = struct{}{}
	b.items = append(b.items, item)
	return true
}

// Items returns the accepted items in acceptance order.
func (b *Bank[T]) Items() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Bank[T]) Len() int { return len(b.items) }

func (b *Bank[T]) Contains(key string) bool {
	_, ok := b.keys[key]
	return ok
}

// Attempts is how many times the producer was called.
func (b *Bank[T]) Attempts() int { return b.attempts }

func (b *Bank[T]) State() State { return b.state }

type generateConfig struct {
	maxConsecutiveFailures int
	log                    *slog.Logger
	observe                func(Attempt)
}

type Option func(*generateConfig)

// WithMaxConsecutiveFailures stops the run once n producer calls in a row
// have failed. Zero disables the cap.
func WithMaxConsecutiveFailures(n int) Option {
	return func(c *generateConfig) { c.maxConsecutiveFailures = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *generateConfig) { c.log = l }
}

// WithObserver is called after every attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(c *generateConfig) { c.observe = fn }
}

// Generate calls produce until target unique items are accepted or
// maxAttempts calls have been made, whichever comes first. Every call counts
// as one attempt: accepted, duplicate, rejected (empty key) or failed.
// Producer failures are absorbed as consumed attempts.
//
// On success the bank is full and the error is nil. When attempts run out the
// partial bank is returned with an *ExhaustedError. A cancelled context stops
// the run with ctx.Err().
func Generate[T any](ctx context.Context, target, maxAttempts int, produce func(context.Context) (T, error), key func(T) string, opts ...Option) (*Bank[T], error) {
	if target < 1 || maxAttempts < target {
		return nil, fmt.Errorf("%w (target=%d, max attempts=%d)", ErrInvalidBounds, target, maxAttempts)
	}

	cfg := generateConfig{log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	bank := newBank[T](target)
	var lastErr error
	consecutiveFailures := 0

	for bank.Len() < target && bank.attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return bank, err
		}

		bank.attempts++
		attempt := Attempt{Number: bank.attempts}

		item, err := produce(ctx)
		switch {
		case err != nil:
			lastErr = err
			consecutiveFailures++
			attempt.Outcome = OutcomeFailed
			attempt.Err = err
			cfg.log.WarnContext(ctx, "Question production failed",
				"attempt", bank.attempts, "max_attempts", maxAttempts, "error", err)
		default:
			consecutiveFailures = 0
			k := key(item)
			switch {
			case k == "":
				attempt.Outcome = OutcomeRejected
				cfg.log.InfoContext(ctx, "Invalid question detected", "attempt", bank.attempts)
			case bank.add(k, item):
				attempt.Outcome = OutcomeAccepted
				cfg.log.InfoContext(ctx, "Successfully generated unique question",
					"attempt", bank.attempts, "accepted", bank.Len())
			default:
				attempt.Outcome = OutcomeDuplicate
				cfg.log.InfoContext(ctx, "Duplicate question detected", "attempt", bank.attempts)
			}
		}

		attempt.Accepted = bank.Len()
		if cfg.observe != nil {
			cfg.observe(attempt)
		}

		if cfg.maxConsecutiveFailures > 0 && consecutiveFailures >= cfg.maxConsecutiveFailures && bank.Len() < target {
			bank.state = Exhausted
			return bank, &ExhaustedError{
				Target:   target,
				Accepted: bank.Len(),
				Attempts: bank.attempts,
				Stalled:  true,
				LastErr:  lastErr,
			}
		}
	}

	if bank.Len() == target {
		bank.state = Succeeded
		return bank, nil
	}

	bank.state = Exhausted
	return bank, &ExhaustedError{
		Target:   target,
		Accepted: bank.Len(),
		Attempts: bank.attempts,
		LastErr:  lastErr,
	}
}
