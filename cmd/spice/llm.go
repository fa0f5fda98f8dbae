package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insights/internal/llm"
)

// apiKey reads key from config, then from the provider's usual environment variable.
func apiKey(key, provider string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "googleai", "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

func llmConfig() (llm.Config, error) {
	cfg := llm.Config{
		Provider:          viper.GetString("llm.provider"),
		Model:             viper.GetString("llm.model"),
		BaseURL:           viper.GetString("llm.base_url"),
		Temperature:       viper.GetFloat64("llm.temperature"),
		MaxTokens:         viper.GetInt("llm.max_tokens"),
		RequestsPerMinute: viper.GetInt("llm.rate_limit"),
		Timeout:           viper.GetDuration("llm.timeout"),
		MaxRetries:        viper.GetInt("llm.max_retries"),
		RetryDelay:        viper.GetDuration("llm.retry_delay"),
	}
	cfg.APIKey = apiKey("llm.api_key", cfg.Provider)
	if cfg.APIKey == "" && !strings.EqualFold(cfg.Provider, "ollama") {
		return cfg, fmt.Errorf("%s API key not found in llm.api_key or the provider's environment variable", cfg.Provider)
	}
	return cfg, nil
}

func embeddingConfig() (llm.EmbeddingConfig, error) {
	cfg := llm.EmbeddingConfig{
		Provider:          viper.GetString("embedding.provider"),
		Model:             viper.GetString("embedding.model"),
		BaseURL:           viper.GetString("embedding.base_url"),
		RequestsPerMinute: viper.GetInt("embedding.rate_limit"),
		Timeout:           viper.GetDuration("embedding.timeout"),
		MaxRetries:        viper.GetInt("embedding.max_retries"),
		CacheTTL:          viper.GetDuration("embedding.cache_ttl"),
	}
	cfg.APIKey = apiKey("embedding.api_key", cfg.Provider)
	if cfg.APIKey == "" {
		cfg.APIKey = apiKey("llm.api_key", cfg.Provider)
	}
	if cfg.APIKey == "" && !strings.EqualFold(cfg.Provider, "ollama") {
		return cfg, fmt.Errorf("%s API key not found in embedding.api_key or the provider's environment variable", cfg.Provider)
	}
	return cfg, nil
}

// newOracle creates the generative model shared by chat and classification.
func newOracle(ctx context.Context) (*llm.Oracle, error) {
	cfg, err := llmConfig()
	if err != nil {
		return nil, err
	}
	return llm.NewOracle(ctx, cfg)
}

func newEmbedder(ctx context.Context) (*llm.Embedder, error) {
	cfg, err := embeddingConfig()
	if err != nil {
		return nil, err
	}
	return llm.NewEmbedder(ctx, cfg)
}
