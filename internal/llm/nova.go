package llm

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/apresai/quizzify/internal/observability"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

// Nova calls Amazon Nova through the Bedrock Converse API.
type Nova struct {
	model  string
	client *bedrockruntime.Client
}

func NewNova(ctx context.Context, model string) (*Nova, error) {
	cfg, err := observability.LoadAWSConfig(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Nova{
		model:  model,
		client: bedrockruntime.NewFromConfig(cfg),
	}, nil
}

func (n *Nova) Complete(ctx context.Context, system, prompt string) (string, error) {
	modelID := novaModels[n.model]
	if modelID == "" {
		modelID = novaModels["nova-lite"]
	}

	return withRetry(ctx, "Bedrock Converse", func(ctx context.Context) (string, error) {
		resp, err := n.client.Converse(ctx, &bedrockruntime.ConverseInput{
			ModelId: aws.String(modelID),
			System: []types.SystemContentBlock{
				&types.SystemContentBlockMemberText{Value: system},
			},
			Messages: []types.Message{
				{
					Role: types.ConversationRoleUser,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: prompt},
					},
				},
			},
			InferenceConfig: &types.InferenceConfiguration{
				MaxTokens:   aws.Int32(maxTokens),
				Temperature: aws.Float32(temperature),
			},
		})
		if err != nil {
			return "", err
		}
		return extractNovaText(resp), nil
	})
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
