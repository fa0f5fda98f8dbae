package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/service"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Oracle is an llms.Model that rate limits, times out and retries every call
// to the wrapped model. Failures are reported as common.ErrTransport, and
// common.ErrRetriesExhausted once retries give up.
type Oracle struct {
	model    llms.Model
	limiter  *rate.Limiter
	callOpts []llms.CallOption
	retry    service.RetryOptions
	timeout  time.Duration
}

var _ llms.Model = (*Oracle)(nil)

// WrapModel wraps model with the limits configured in cfg.
func WrapModel(model llms.Model, cfg Config) *Oracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var callOpts []llms.CallOption
	if cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
	}

	return &Oracle{
		model:    model,
		limiter:  newLimiter(cfg.RequestsPerMinute),
		callOpts: callOpts,
		timeout:  timeout,
		retry: service.RetryOptions{
			MaxAttempts:  retries,
			InitialDelay: delay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// GenerateContent implements llms.Model.
func (o *Oracle) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := make([]llms.CallOption, 0, len(o.callOpts)+len(options))
	opts = append(opts, o.callOpts...)
	opts = append(opts, options...)

	var resp *llms.ContentResponse
	err := common.WithRetry(ctx, func(ctx context.Context) error {
		if err := o.limiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("rate limiter: %w", err), Retryable: false}
		}

		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		r, err := o.model.GenerateContent(callCtx, messages, opts...)
		if err != nil {
			return classifyError(ctx, err)
		}
		resp = r
		return nil
	}, o.retry)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Call implements llms.Model.
func (o *Oracle) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// classifyError tags a provider error as transport, rate limit, or permanent.
func classifyError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return &common.RetryableError{Err: parent.Err(), Retryable: false}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %w: %w", common.ErrTransport, common.ErrRateLimit, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key"):
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrTransport, err), Retryable: false}
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: call timed out: %w", common.ErrTransport, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
}
