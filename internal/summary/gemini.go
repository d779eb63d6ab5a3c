package summary

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend calls Google's Gemini API.
type GeminiBackend struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiBackend requires an API key (GEMINI_API_KEY).
func NewGeminiBackend(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set GEMINI_API_KEY)")
	}
	if model == "" || strings.HasPrefix(model, "anthropic.") {
		model = defaultGeminiModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model, maxTokens: maxTokens}, nil
}

func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(b.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}
	return strings.TrimSpace(resp.Text()), nil
}
