package services

import (
	"context"
	"fmt"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
)

type QueryService struct {
	orders       application.OrderStore
	transactions gateway.ResourceClient
}

func NewQueryService(
	orders application.OrderStore,
	transactions gateway.ResourceClient,
) *QueryService {
	return &QueryService{
		orders:       orders,
		transactions: transactions,
	}
}

const maxReviewBatch = 500

// ListNeedingReview returns orders whose attempt moved money without
// completing, oldest first.
func (s *QueryService) ListNeedingReview(ctx context.Context, limit int) ([]*domain.OrderRecord, error) {
	if limit <= 0 || limit > maxReviewBatch {
		limit = maxReviewBatch
	}
	orders, err := s.orders.FindNeedingReview(ctx, limit)
	if err != nil {
		return nil, application.NewStoreError(err)
	}
	return orders, nil
}

func (s *QueryService) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	return findOrder(ctx, s.orders, orderID)
}

// FetchTransaction loads the order's transaction from the gateway.
func (s *QueryService) FetchTransaction(ctx context.Context, orderID string) (gateway.Envelope, error) {
	order, err := findOrder(ctx, s.orders, orderID)
	if err != nil {
		return gateway.Envelope{}, err
	}

	if !order.Captured() {
		return gateway.Envelope{}, application.NewInvalidStateError(fmt.Errorf("order %s has no transaction", orderID))
	}

	env, err := s.transactions.Fetch(ctx, order.TransactionID)
	if err != nil {
		code := domain.CodeOf(err)
		if code == "" {
			return gateway.Envelope{}, application.NewInternalError(err)
		}
		svcErr := application.NewPaymentFailedError(code, 0)
		svcErr.Err = err
		return gateway.Envelope{}, svcErr
	}
	return env, nil
}
