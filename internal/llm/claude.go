package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

// Claude reads ANTHROPIC_API_KEY from the environment.
type Claude struct {
	model  string
	client anthropic.Client
}

func NewClaude(model string) *Claude {
	return &Claude{model: model, client: anthropic.NewClient()}
}

func (c *Claude) Complete(ctx context.Context, system, prompt string) (string, error) {
	modelID := claudeModels[c.model]
	if modelID == "" {
		modelID = claudeModels[DefaultModel]
	}

	return withRetry(ctx, "Claude", func(ctx context.Context) (string, error) {
		message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(modelID),
			MaxTokens:   maxTokens,
			Temperature: anthropic.Float(temperature),
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", err
		}
		return extractText(message), nil
	})
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
