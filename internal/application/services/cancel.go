package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/infrastructure/lock"
)

type CancelService struct {
	orders     application.OrderStore
	orderLocks application.AttemptGuard
	logger     *slog.Logger
	now        func() time.Time
}

func NewCancelService(orders application.OrderStore, orderLocks application.AttemptGuard, logger *slog.Logger) *CancelService {
	if orderLocks == nil {
		orderLocks = lock.NopGuard{}
	}
	return &CancelService{
		orders:     orders,
		orderLocks: orderLocks,
		logger:     logger,
		now:        time.Now,
	}
}

// Cancel flags an order that was never charged. A cancelled order cannot be
// captured later.
func (s *CancelService) Cancel(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	if err := lockOrder(ctx, s.orderLocks, orderID); err != nil {
		return nil, err
	}
	defer unlockOrder(ctx, s.orderLocks, orderID, s.logger)

	order, err := findOrder(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.Cancel(s.now().UTC()); err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	if err := s.orders.MarkCancelled(ctx, order); err != nil {
		if errors.Is(err, domain.ErrOrderAlreadyCaptured) {
			return nil, application.NewInvalidStateError(err)
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("order cancelled", "order_id", order.OrderID)
	return order, nil
}
