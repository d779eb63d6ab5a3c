// Package summary turns a contribution report into an AI-written narrative.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
)

// Provider names a summarization service.
type Provider string

const (
	ProviderBedrock Provider = "bedrock"
	ProviderOpenAI  Provider = "openai"
	ProviderGemini  Provider = "gemini"
)

// Backend completes a single prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Settings selects and configures a backend.
type Settings struct {
	Provider  Provider
	Model     string
	Region    string
	MaxTokens int
	OpenAIKey string
	GeminiKey string
}

// NewBackend builds the backend for settings.Provider.
func NewBackend(ctx context.Context, settings Settings) (Backend, error) {
	switch Provider(strings.ToLower(string(settings.Provider))) {
	case ProviderBedrock, "":
		return NewBedrockBackend(ctx, settings.Model, settings.Region, settings.MaxTokens)
	case ProviderOpenAI:
		return NewOpenAIBackend(settings.OpenAIKey, settings.Model, settings.MaxTokens)
	case ProviderGemini:
		return NewGeminiBackend(ctx, settings.GeminiKey, settings.Model, settings.MaxTokens)
	default:
		return nil, domain.NewConfigurationError(fmt.Errorf("unknown AI provider %q", settings.Provider))
	}
}
