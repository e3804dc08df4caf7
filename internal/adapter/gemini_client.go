package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through the official genai SDK.
type GeminiClient struct {
	model       string
	baseURL     string
	temperature float32
	keys        *KeyPool

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiClient constructs the client; SDK clients are created lazily per key.
// An empty baseURL selects the SDK's default endpoint.
func NewGeminiClient(model, baseURL string, temperature float32, keys *KeyPool) *GeminiClient {
	return &GeminiClient{
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		keys:        keys,
		clients:     map[string]*genai.Client{},
	}
}

// Name implements LLMClient.
func (c *GeminiClient) Name() string {
	return ProviderGemini + ":" + c.model
}

func (c *GeminiClient) client(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cli, ok := c.clients[key]; ok {
		return cli, nil
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c.clients[key] = cli

	return cli, nil
}

// Complete implements LLMClient.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	key, err := c.keys.Get()
	if err != nil {
		return "", err
	}

	cli, err := c.client(ctx, key)
	if err != nil {
		return "", err
	}

	temperature := c.temperature

	resp, err := cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		slog.Error("Gemini generate content failed", "model", c.model, "error", err)
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String(), nil
}
