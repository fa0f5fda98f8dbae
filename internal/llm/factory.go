package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Veraticus/spice-insights/internal/common"
)

const defaultOllamaURL = "http://localhost:11434"

// NewModel creates the raw provider model for cfg.
func NewModel(ctx context.Context, cfg Config) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "googleai", "gemini":
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		return googleai.New(ctx, opts...)
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(cfg.Model))
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrValidation, cfg.Provider)
	}
}

// NewOracle creates a rate limited, retrying generative oracle for cfg.
func NewOracle(ctx context.Context, cfg Config) (*Oracle, error) {
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", cfg.Provider, err)
	}
	return WrapModel(model, cfg), nil
}

// NewEmbeddingClient creates the provider client that computes embeddings.
func NewEmbeddingClient(ctx context.Context, cfg EmbeddingConfig) (embeddings.EmbedderClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "googleai", "gemini":
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultEmbeddingModel(cfg.Model))
		}
		return googleai.New(ctx, opts...)
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(cfg.Model))
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", common.ErrValidation, cfg.Provider)
	}
}

// NewEmbedder creates a cached, rate limited embedder for cfg.
func NewEmbedder(ctx context.Context, cfg EmbeddingConfig) (*Embedder, error) {
	client, err := NewEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedding client: %w", cfg.Provider, err)
	}
	base, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return WrapEmbedder(base, cfg), nil
}
