package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	DefaultBedrockModel  = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultBedrockRegion = "us-east-1"
	DefaultMaxTokens     = 2000

	anthropicVersion = "bedrock-2023-05-31"
)

// modelInvoker is the part of the Bedrock runtime client the backend uses.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockBackend calls an Anthropic model hosted on Amazon Bedrock.
type BedrockBackend struct {
	client    modelInvoker
	model     string
	maxTokens int
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewBedrockBackend loads AWS credentials from the default chain.
func NewBedrockBackend(ctx context.Context, model, region string, maxTokens int) (*BedrockBackend, error) {
	if region == "" {
		region = DefaultBedrockRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return newBedrockBackend(bedrockruntime.NewFromConfig(cfg), model, maxTokens), nil
}

func newBedrockBackend(client modelInvoker, model string, maxTokens int) *BedrockBackend {
	if model == "" {
		model = DefaultBedrockModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &BedrockBackend{client: client, model: model, maxTokens: maxTokens}
}

// Complete sends the prompt as a single user message.
func (b *BedrockBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.maxTokens,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invocation failed: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("bedrock returned no content")
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}
