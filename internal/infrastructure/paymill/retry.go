package paymill

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/k10r/paymill-shopware/internal/config"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
	"github.com/sony/gobreaker"
)

// RetryFetchClient retries fetches on transport failures. Creates move money
// or create resources and pass straight through.
type RetryFetchClient struct {
	inner      gateway.ResourceClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryFetchClient(inner gateway.ResourceClient, cfg config.RetryConfig) *RetryFetchClient {
	maxRetries := int(cfg.MaxRetries)
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryFetchClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: maxRetries,
	}
}

func (r *RetryFetchClient) Create(ctx context.Context, params gateway.Params) (gateway.Envelope, error) {
	return r.inner.Create(ctx, params)
}

func (r *RetryFetchClient) Fetch(ctx context.Context, id string) (gateway.Envelope, error) {
	return retry(r, ctx, func(ctx context.Context) (gateway.Envelope, error) {
		return r.inner.Fetch(ctx, id)
	})
}

func retry[T any](r *RetryFetchClient, ctx context.Context, operation func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}

		if attempt < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return zero, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.IsRetryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return domain.IsErrorCode(err, domain.ErrCodeGatewayUnreachable)
}

// backoff grows exponentially from baseDelay with up to baseDelay of jitter.
func (r *RetryFetchClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	if r.baseDelay <= 0 {
		return base
	}
	jitter := time.Duration(rand.Int63n(int64(r.baseDelay)))
	return base + jitter
}
