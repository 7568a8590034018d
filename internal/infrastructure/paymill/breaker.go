package paymill

import (
	"context"
	"log/slog"

	"github.com/k10r/paymill-shopware/internal/config"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
	"github.com/sony/gobreaker"
)

// BreakerClient fails fast with GATEWAY_UNREACHABLE while the gateway keeps
// failing at the transport level. Envelopes of any shape count as success.
type BreakerClient struct {
	kind  gateway.ResourceKind
	inner gateway.ResourceClient
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerClient(kind gateway.ResourceKind, inner gateway.ResourceClient, cfg config.BreakerConfig, logger *slog.Logger) *BreakerClient {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "paymill-" + kind.String(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			}
		},
	}

	return &BreakerClient{
		kind:  kind,
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerClient) Create(ctx context.Context, params gateway.Params) (gateway.Envelope, error) {
	return b.execute(func() (gateway.Envelope, error) {
		return b.inner.Create(ctx, params)
	})
}

func (b *BreakerClient) Fetch(ctx context.Context, id string) (gateway.Envelope, error) {
	return b.execute(func() (gateway.Envelope, error) {
		return b.inner.Fetch(ctx, id)
	})
}

// State reports the breaker state. Breakers.Check reads it for /healthz.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerClient) execute(call func() (gateway.Envelope, error)) (gateway.Envelope, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		if !domain.IsErrorCode(err, domain.ErrCodeGatewayUnreachable) {
			err = domain.NewGatewayUnreachableError(b.kind.String(), err)
		}
		return gateway.Envelope{}, err
	}
	return result.(gateway.Envelope), nil
}
