package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/k10r/paymill-shopware/internal/application/services"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
)

type CheckoutService interface {
	Checkout(ctx context.Context, cmd services.CheckoutCommand) (*services.CheckoutResult, error)
}

type CaptureService interface {
	Capture(ctx context.Context, cmd services.CaptureCommand) (*domain.OrderRecord, error)
}

type CancelService interface {
	Cancel(ctx context.Context, orderID string) (*domain.OrderRecord, error)
}

type QueryService interface {
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	FetchTransaction(ctx context.Context, orderID string) (gateway.Envelope, error)
	ListNeedingReview(ctx context.Context, limit int) ([]*domain.OrderRecord, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	checkoutService CheckoutService
	captureService  CaptureService
	cancelService   CancelService
	queryService    QueryService
	healthChecks    map[string]HealthCheck
	logger          *slog.Logger
}

func NewHandlers(
	checkoutService CheckoutService,
	captureService CaptureService,
	cancelService CancelService,
	queryService QueryService,
	healthChecks map[string]HealthCheck,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		checkoutService: checkoutService,
		captureService:  captureService,
		cancelService:   cancelService,
		queryService:    queryService,
		healthChecks:    healthChecks,
		logger:          logger,
	}
}

// Register mounts the API routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/checkouts", h.Checkout)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/capture", h.CaptureOrder)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/cancel", h.CancelOrder)
	mux.HandleFunc("GET /api/v1/orders/review", h.ListOrdersNeedingReview)
	mux.HandleFunc("GET /api/v1/orders/{orderID}", h.GetOrder)
	mux.HandleFunc("GET /api/v1/orders/{orderID}/transaction", h.GetOrderTransaction)
	mux.HandleFunc("GET /healthz", h.Health)
}
