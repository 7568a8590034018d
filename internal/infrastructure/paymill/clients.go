package paymill

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/k10r/paymill-shopware/internal/config"
	"github.com/k10r/paymill-shopware/internal/gateway"
	"github.com/k10r/paymill-shopware/internal/metrics"
	"github.com/sony/gobreaker"
)

// Breakers holds the circuit breaker of every resource kind in a fixed order.
type Breakers []*BreakerClient

// Check fails while any breaker is open. It backs the paymill entry of /healthz.
func (bs Breakers) Check(context.Context) error {
	for _, b := range bs {
		if b.State() == gobreaker.StateOpen {
			return fmt.Errorf("%s circuit open", b.kind)
		}
	}
	return nil
}

// NewClients stacks transport, circuit breaker and fetch retry for every
// resource kind. All kinds share one http.Client.
func NewClients(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (gateway.Clients, Breakers, error) {
	httpClient := &http.Client{Timeout: cfg.Paymill.ConnTimeout}
	var breakers Breakers

	build := func(kind gateway.ResourceKind) (gateway.ResourceClient, error) {
		transport, err := NewResourceClient(kind, cfg.Paymill, httpClient, m)
		if err != nil {
			return nil, err
		}
		breaker := NewBreakerClient(kind, transport, cfg.Breaker, logger)
		breakers = append(breakers, breaker)
		return NewRetryFetchClient(breaker, cfg.Retry), nil
	}

	var clients gateway.Clients
	var err error
	if clients.Clients, err = build(gateway.KindClient); err != nil {
		return gateway.Clients{}, nil, err
	}
	if clients.PaymentMethods, err = build(gateway.KindPaymentMethod); err != nil {
		return gateway.Clients{}, nil, err
	}
	if clients.Preauthorizations, err = build(gateway.KindPreauthorization); err != nil {
		return gateway.Clients{}, nil, err
	}
	if clients.Transactions, err = build(gateway.KindTransaction); err != nil {
		return gateway.Clients{}, nil, err
	}
	if clients.Refunds, err = build(gateway.KindRefund); err != nil {
		return gateway.Clients{}, nil, err
	}
	return clients, breakers, nil
}
