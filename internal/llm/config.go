package llm

import "time"

// Config configures the generative model.
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetries        int
	CacheTTL          time.Duration
}
