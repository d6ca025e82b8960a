// Package llm adapts hosted language models to the single-prompt completion
// call the quiz generator needs.
package llm

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	temperature    = 0.7
	maxTokens      = 2048
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	backoffMult    = 2
)

// Model completes a prompt under a system instruction and returns raw text.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// DefaultModel is used when no model name is given.
const DefaultModel = "haiku"

// Names lists every accepted model name.
func Names() []string {
	var out []string
	for _, m := range []map[string]string{claudeModels, geminiModels, novaModels} {
		for name := range m {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// New returns the backend for a model name.
func New(ctx context.Context, name string) (Model, error) {
	if name == "" {
		name = DefaultModel
	}
	switch {
	case claudeModels[name] != "":
		return NewClaude(name), nil
	case geminiModels[name] != "":
		return NewGemini(ctx, name)
	case novaModels[name] != "":
		return NewNova(ctx, name)
	default:
		return nil, fmt.Errorf("unknown model %q (valid: %v)", name, Names())
	}
}

// withRetry runs call up to maxRetries times with exponential backoff. An
// empty response counts as a failed attempt.
func withRetry(ctx context.Context, provider string, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		text, err := call(ctx)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%s API error (attempt %d/%d): %w", provider, attempt, maxRetries, err)
		case text == "":
			lastErr = fmt.Errorf("empty response from %s (attempt %d/%d)", provider, attempt, maxRetries)
		default:
			return text, nil
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(backoffMult)
		}
	}

	return "", lastErr
}
