package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/time/rate"
)

// ErrKeysExhausted is returned when every configured API key reached its usage cap.
var ErrKeysExhausted = errors.New("no API keys left")

// LLMClient is a black-box text generator: one prompt in, one completion out.
// There is no streaming and no conversation state.
type LLMClient interface {
	// Name identifies provider and model, e.g. "openrouter:google/gemini-2.5-flash-lite".
	Name() string
	// Complete sends prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// KeyPool hands out API keys at random among those still under their usage cap.
type KeyPool struct {
	mu       sync.Mutex
	usage    map[string]int
	order    []string
	maxUsage int
}

// NewKeyPool constructs a pool. maxUsage <= 0 disables the cap. Empty keys are ignored.
func NewKeyPool(keys []string, maxUsage int) *KeyPool {
	pool := &KeyPool{usage: map[string]int{}, maxUsage: maxUsage}

	for _, key := range keys {
		if key == "" {
			continue
		}

		if _, dup := pool.usage[key]; dup {
			continue
		}

		pool.usage[key] = 0
		pool.order = append(pool.order, key)
	}

	return pool
}

// Len returns the number of distinct keys in the pool.
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.order)
}

// Get returns a key and records one use of it.
func (p *KeyPool) Get() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	available := make([]string, 0, len(p.order))

	for _, key := range p.order {
		if p.maxUsage <= 0 || p.usage[key] < p.maxUsage {
			available = append(available, key)
		}
	}

	if len(available) == 0 {
		return "", ErrKeysExhausted
	}

	// #nosec G404 - key selection only spreads load, it is not security sensitive
	key := available[rand.IntN(len(available))]
	p.usage[key]++

	return key, nil
}

// RateLimitedClient delays calls to an LLMClient to respect provider quotas.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a limiter of perMinute requests.
// perMinute <= 0 returns inner unchanged.
func NewRateLimitedClient(inner LLMClient, perMinute float64) LLMClient {
	if perMinute <= 0 {
		return inner
	}

	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), 1),
	}
}

// Name implements LLMClient.
func (c *RateLimitedClient) Name() string {
	return c.inner.Name()
}

// Complete implements LLMClient.
func (c *RateLimitedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	return c.inner.Complete(ctx, prompt)
}

// LLMConfig selects and configures a provider.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	Keys        []string
	KeyMaxUsage int
	PerMinute   float64
	Temperature float32
}

// Provider names accepted by NewLLMClient.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

// NewLLMClient builds the configured provider client, rate limited.
func NewLLMClient(cfg LLMConfig) (LLMClient, error) {
	pool := NewKeyPool(cfg.Keys, cfg.KeyMaxUsage)
	if pool.Len() == 0 {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	var client LLMClient

	switch cfg.Provider {
	case ProviderOpenRouter, "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}

		client = NewOpenAIClient(ProviderOpenRouter, baseURL, cfg.Model, cfg.Temperature, pool)
	case ProviderOpenAI:
		client = NewOpenAIClient(ProviderOpenAI, cfg.BaseURL, cfg.Model, cfg.Temperature, pool)
	case ProviderGemini:
		client = NewGeminiClient(cfg.Model, cfg.BaseURL, cfg.Temperature, pool)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	slog.Info("Initialized LLM client", "client", client.Name(), "keys", pool.Len(), "perMinute", cfg.PerMinute)

	return NewRateLimitedClient(client, cfg.PerMinute), nil
}
