package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// chatCompleter is the part of the OpenAI client the backend uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIBackend calls the OpenAI chat completion API.
type OpenAIBackend struct {
	client    chatCompleter
	model     string
	maxTokens int
}

// NewOpenAIBackend requires an API key (OPENAI_API_KEY).
func NewOpenAIBackend(apiKey, model string, maxTokens int) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required (set OPENAI_API_KEY)")
	}
	if model == "" || strings.HasPrefix(model, "anthropic.") {
		model = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &OpenAIBackend{client: openai.NewClient(apiKey), model: model, maxTokens: maxTokens}, nil
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: b.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
