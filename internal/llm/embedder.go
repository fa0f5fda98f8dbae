package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/time/rate"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/service"
)

// Embedder is an embeddings.Embedder with caching, rate limiting, per-call
// timeouts and bounded retries around the wrapped embedder.
type Embedder struct {
	base      embeddings.Embedder
	limiter   *rate.Limiter
	cache     *embeddingCache
	retry     service.RetryOptions
	timeout   time.Duration
	closeOnce sync.Once
}

var _ embeddings.Embedder = (*Embedder)(nil)

// WrapEmbedder wraps base with the limits configured in cfg.
func WrapEmbedder(base embeddings.Embedder, cfg EmbeddingConfig) *Embedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Embedder{
		base:    base,
		limiter: newLimiter(cfg.RequestsPerMinute),
		cache:   newEmbeddingCache(cfg.CacheTTL),
		timeout: timeout,
		retry: service.RetryOptions{
			MaxAttempts:  retries,
			InitialDelay: defaultRetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// EmbedDocuments embeds texts, calling the provider only for texts not cached.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := e.cache.get(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var vectors [][]float32
	err := e.do(ctx, func(callCtx context.Context) error {
		v, err := e.base.EmbedDocuments(callCtx, missing)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", common.ErrFormat, len(missing), len(vectors))
	}

	for j, idx := range missingIdx {
		out[idx] = vectors[j]
		e.cache.set(missing[j], vectors[j])
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.get(text); ok {
		return v, nil
	}

	var vector []float32
	err := e.do(ctx, func(callCtx context.Context) error {
		v, err := e.base.EmbedQuery(callCtx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.cache.set(text, vector)
	return vector, nil
}

func (e *Embedder) do(ctx context.Context, call func(context.Context) error) error {
	return common.WithRetry(ctx, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("rate limiter: %w", err), Retryable: false}
		}
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		if err := call(callCtx); err != nil {
			return classifyError(ctx, err)
		}
		return nil
	}, e.retry)
}

// Close stops the cache cleanup goroutine.
func (e *Embedder) Close() {
	e.closeOnce.Do(e.cache.Close)
}
