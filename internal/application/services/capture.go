package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator"
	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/infrastructure/lock"
	"github.com/k10r/paymill-shopware/internal/metrics"
)

type CaptureService struct {
	orchestrator application.PaymentOrchestrator
	customers    application.CustomerStore
	orders       application.OrderStore
	orderLocks   application.AttemptGuard
	metrics      *metrics.Metrics
	logger       *slog.Logger
	source       string
	validate     *validator.Validate
}

func NewCaptureService(
	orchestrator application.PaymentOrchestrator,
	customers application.CustomerStore,
	orders application.OrderStore,
	orderLocks application.AttemptGuard,
	m *metrics.Metrics,
	logger *slog.Logger,
	source string,
) *CaptureService {
	if orderLocks == nil {
		orderLocks = lock.NopGuard{}
	}
	return &CaptureService{
		orchestrator: orchestrator,
		customers:    customers,
		orders:       orders,
		orderLocks:   orderLocks,
		metrics:      m,
		logger:       logger,
		source:       source,
		validate:     validator.New(),
	}
}

// Capture charges the order amount against its stored preauthorization.
// Captures of one order are serialized by the order lock.
func (s *CaptureService) Capture(ctx context.Context, cmd CaptureCommand) (*domain.OrderRecord, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := lockOrder(ctx, s.orderLocks, cmd.OrderID); err != nil {
		return nil, err
	}
	defer unlockOrder(ctx, s.orderLocks, cmd.OrderID, s.logger)

	order, err := findOrder(ctx, s.orders, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if err := order.CanCapture(); err != nil {
		return nil, application.NewInvalidStateError(err)
	}

	params := domain.CaptureParams{
		PreauthorizationID: order.PreauthorizationID,
		Amount:             order.Amount,
		Currency:           order.Currency,
		Description:        cmd.Description,
		Source:             s.source,
	}
	if params.Description == "" {
		params.Description = fmt.Sprintf("Order %s", order.OrderID)
	}

	customer, err := s.customers.FindByCustomerID(ctx, order.CustomerID)
	switch {
	case err == nil:
		params.ClientID = customer.ClientID
		params.PaymentMethodID = customer.PaymentMethodID(order.PaymentType)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, application.NewStoreError(err)
	}

	opCtx := context.WithoutCancel(ctx)
	pc := domain.NewCaptureContext(params)
	if !s.orchestrator.Capture(opCtx, pc) {
		s.metrics.CaptureProcessed(outcomeFailed)
		s.logger.Info("capture failed",
			"order_id", order.OrderID,
			"process_id", pc.ProcessID(),
			"preauthorization_id", order.PreauthorizationID,
			"error_code", pc.ErrorCode(),
		)
		return nil, application.NewPaymentFailedError(pc.ErrorCode(), pc.ResponseCode())
	}

	if err := s.orders.SetTransaction(opCtx, order.OrderID, pc.TransactionID()); err != nil {
		s.metrics.CaptureProcessed(outcomeFailed)
		s.logger.Error("capture succeeded but order could not be updated",
			"order_id", order.OrderID,
			"process_id", pc.ProcessID(),
			"transaction_id", pc.TransactionID(),
			"error", err,
		)
		return nil, application.NewInternalError(err)
	}

	s.metrics.CaptureProcessed(outcomeSucceeded)
	s.logger.Info("capture succeeded",
		"order_id", order.OrderID,
		"process_id", pc.ProcessID(),
		"transaction_id", pc.TransactionID(),
	)

	order.TransactionID = pc.TransactionID()
	order.NeedsReview = false
	return order, nil
}

func findOrder(ctx context.Context, orders application.OrderStore, orderID string) (*domain.OrderRecord, error) {
	order, err := orders.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewStoreError(err)
	}
	return order, nil
}
