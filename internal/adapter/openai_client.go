package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// ErrEmptyCompletion is returned when a provider answers without any choice.
var ErrEmptyCompletion = errors.New("provider returned no completion")

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	provider    string
	baseURL     string
	model       string
	temperature float32
	keys        *KeyPool
}

// NewOpenAIClient constructs the client. An empty baseURL keeps go-openai's default.
func NewOpenAIClient(provider, baseURL, model string, temperature float32, keys *KeyPool) *OpenAIClient {
	return &OpenAIClient{
		provider:    provider,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		keys:        keys,
	}
}

// Name implements LLMClient.
func (c *OpenAIClient) Name() string {
	return c.provider + ":" + c.model
}

// Complete implements LLMClient.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	key, err := c.keys.Get()
	if err != nil {
		return "", err
	}

	config := openai.DefaultConfig(key)
	if c.baseURL != "" {
		config.BaseURL = c.baseURL
	}

	client := openai.NewClientWithConfig(config)

	slog.Debug("Requesting completion", "provider", c.provider, "model", c.model, "promptBytes", len(prompt))

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		slog.Error("Chat completion failed", "provider", c.provider, "model", c.model, "error", err)
		return "", fmt.Errorf("%s chat completion: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	slog.Debug("Received completion", "provider", c.provider, "finishReason", resp.Choices[0].FinishReason)

	return resp.Choices[0].Message.Content, nil
}
