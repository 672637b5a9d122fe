package embedder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/llm"
	"github.com/Jj0520/FileWise-sub000/internal/ratelimit"
)

// DefaultRateLimitBackoff is the pause before the single retry of a rate-limited call
const DefaultRateLimitBackoff = 15 * time.Second

// RetryConfig configures retry behavior for provider calls
type RetryConfig struct {
	MaxAttempts int              // Total attempts including the first
	Backoff     time.Duration    // Fixed delay between attempts
	Retryable   func(error) bool // Only errors matching this are retried
}

// DefaultRetryConfig retries a transient failure exactly once after the backoff
func DefaultRetryConfig(backoff time.Duration) RetryConfig {
	if backoff <= 0 {
		backoff = DefaultRateLimitBackoff
	}
	return RetryConfig{
		MaxAttempts: 2,
		Backoff:     backoff,
		Retryable:   llm.IsRetryable,
	}
}

// retryWithBackoff executes fn, retrying retryable failures with a fixed delay.
// Retry is skipped on context cancellation.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if config.Retryable != nil && !config.Retryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(config.Backoff):
			}
		}
	}

	return zero, lastErr
}

// caller runs provider requests through the process gate with retry and tracing
type caller struct {
	gate     *ratelimit.Gate
	retry    RetryConfig
	logger   *zap.Logger
	provider string
}

func newCaller(gate *ratelimit.Gate, backoff time.Duration, logger *zap.Logger, provider string) *caller {
	if gate == nil {
		gate = ratelimit.New(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &caller{
		gate:     gate,
		retry:    DefaultRetryConfig(backoff),
		logger:   logger,
		provider: provider,
	}
}

func (c *caller) call(ctx context.Context, fn func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	ctx, span := otel.Tracer("filewise/embedder").Start(ctx, "embedder.generate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("embedder.provider", c.provider))

	attempt := 0
	vector, err := retryWithBackoff(ctx, c.retry, func() ([]float32, error) {
		attempt++
		if attempt > 1 {
			c.logger.Info("retrying rate-limited embedding call",
				zap.String("provider", c.provider),
				zap.Duration("backoff", c.retry.Backoff))
		}
		return ratelimit.Call(ctx, c.gate, fn)
	})
	span.SetAttributes(attribute.Int("embedder.attempts", attempt))
	if err != nil {
		span.SetAttributes(attribute.Bool("embedder.error", true))
		return nil, err
	}
	return vector, nil
}
