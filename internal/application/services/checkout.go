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

const (
	outcomeSucceeded   = "succeeded"
	outcomeFailed      = "failed"
	outcomeNeedsReview = "needs_review"
)

type CheckoutService struct {
	orchestrator application.PaymentOrchestrator
	customers    application.CustomerStore
	orders       application.OrderStore
	uow          application.UnitOfWork
	guard        application.AttemptGuard
	orderLocks   application.AttemptGuard
	metrics      *metrics.Metrics
	logger       *slog.Logger
	source       string
	validate     *validator.Validate
}

func NewCheckoutService(
	orchestrator application.PaymentOrchestrator,
	customers application.CustomerStore,
	orders application.OrderStore,
	uow application.UnitOfWork,
	guard application.AttemptGuard,
	orderLocks application.AttemptGuard,
	m *metrics.Metrics,
	logger *slog.Logger,
	source string,
) *CheckoutService {
	if guard == nil {
		guard = lock.NopGuard{}
	}
	if orderLocks == nil {
		orderLocks = lock.NopGuard{}
	}
	return &CheckoutService{
		orchestrator: orchestrator,
		customers:    customers,
		orders:       orders,
		uow:          uow,
		guard:        guard,
		orderLocks:   orderLocks,
		metrics:      m,
		logger:       logger,
		source:       source,
		validate:     validator.New(),
	}
}

// Checkout runs one payment attempt for an order. Gateway ids created on the
// way are stored against the customer even when the attempt fails, so a retry
// reuses them instead of creating duplicates.
//
// Once the gateway call starts it runs to completion on a context detached
// from the request; the transport timeout bounds it instead.
func (s *CheckoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	paymentType, err := domain.ParsePaymentType(cmd.PaymentType)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := lockOrder(ctx, s.orderLocks, cmd.OrderID); err != nil {
		return nil, err
	}
	defer unlockOrder(ctx, s.orderLocks, cmd.OrderID, s.logger)

	if _, err := s.orders.FindByOrderID(ctx, cmd.OrderID); err == nil {
		return nil, application.NewInvalidStateError(fmt.Errorf("order %s already processed", cmd.OrderID))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, application.NewStoreError(err)
	}

	if err := s.guard.Acquire(ctx, cmd.Token); err != nil {
		if errors.Is(err, lock.ErrAttemptInProgress) || errors.Is(err, lock.ErrAttemptCompleted) {
			s.metrics.DuplicateAttempt()
			s.logger.Warn("duplicate checkout attempt refused",
				"order_id", cmd.OrderID,
				"token", domain.MaskToken(cmd.Token),
			)
			return nil, application.NewDuplicateAttemptError(err)
		}
		return nil, application.NewInternalError(fmt.Errorf("acquire attempt guard: %w", err))
	}

	stored, err := s.storedIdentifiers(ctx, cmd.CustomerID)
	if err != nil {
		s.release(ctx, cmd.Token)
		return nil, application.NewStoreError(err)
	}

	paymentMethodID := stored.PaymentMethodID(paymentType)
	if cmd.NewCard {
		paymentMethodID = ""
	}

	pc := domain.NewProcessingContext(domain.Params{
		Token:            cmd.Token,
		BasketAmount:     cmd.Amount,
		AuthorizedAmount: cmd.AuthorizedAmount,
		Currency:         cmd.Currency,
		CustomerName:     cmd.CustomerName,
		CustomerEmail:    cmd.CustomerEmail,
		Description:      cmd.Description,
		Source:           s.source,
		ClientID:         stored.ClientID,
		PaymentMethodID:  paymentMethodID,
	})

	opCtx := context.WithoutCancel(ctx)
	mode := s.orchestrator.Mode(pc, cmd.CaptureImmediately)
	ok := s.orchestrator.ProcessPayment(opCtx, pc, cmd.CaptureImmediately)
	moneyMoved := pc.IssuedIdentifier() != ""

	var order *domain.OrderRecord
	if ok || moneyMoved {
		order = &domain.OrderRecord{
			OrderID:            cmd.OrderID,
			CustomerID:         cmd.CustomerID,
			PaymentType:        paymentType,
			ProcessID:          pc.ProcessID(),
			TransactionID:      pc.TransactionID(),
			PreauthorizationID: pc.PreauthorizationID(),
			Amount:             cmd.Amount,
			Currency:           cmd.Currency,
			Mode:               mode.String(),
			NeedsReview:        !ok,
		}
	}

	persistErr := s.persist(opCtx, cmd, paymentType, stored, pc, order)

	if !ok && !moneyMoved {
		s.release(opCtx, cmd.Token)
		s.metrics.CheckoutProcessed(mode.String(), outcomeFailed)
		if persistErr != nil {
			s.logger.Error("failed to store gateway identifiers",
				"order_id", cmd.OrderID,
				"process_id", pc.ProcessID(),
				"error", persistErr,
			)
		}
		s.logger.Info("checkout failed",
			"order_id", cmd.OrderID,
			"process_id", pc.ProcessID(),
			"mode", mode.String(),
			"error_code", pc.ErrorCode(),
			"response_code", pc.ResponseCode(),
		)
		return nil, application.NewPaymentFailedError(pc.ErrorCode(), pc.ResponseCode())
	}

	// Money has moved: the token must stay used even if bookkeeping failed.
	if err := s.guard.Complete(opCtx, cmd.Token); err != nil {
		s.logger.Error("failed to complete attempt guard", "order_id", cmd.OrderID, "error", err)
	}

	if !ok {
		s.metrics.CheckoutProcessed(mode.String(), outcomeNeedsReview)
		s.logger.Error("checkout failed after money moved, order flagged for review",
			"order_id", cmd.OrderID,
			"process_id", pc.ProcessID(),
			"mode", mode.String(),
			"transaction_id", pc.TransactionID(),
			"preauthorization_id", pc.PreauthorizationID(),
			"error_code", pc.ErrorCode(),
			"response_code", pc.ResponseCode(),
			"store_error", persistErr,
		)
		return nil, application.NewPaymentFailedError(pc.ErrorCode(), pc.ResponseCode())
	}

	if persistErr != nil {
		s.metrics.CheckoutProcessed(mode.String(), outcomeFailed)
		s.logger.Error("payment succeeded but order could not be stored",
			"order_id", cmd.OrderID,
			"process_id", pc.ProcessID(),
			"transaction_id", pc.TransactionID(),
			"preauthorization_id", pc.PreauthorizationID(),
			"error", persistErr,
		)
		return nil, application.NewInternalError(persistErr)
	}

	s.metrics.CheckoutProcessed(mode.String(), outcomeSucceeded)
	s.logger.Info("checkout succeeded",
		"order_id", cmd.OrderID,
		"process_id", pc.ProcessID(),
		"mode", mode.String(),
		"transaction_id", pc.TransactionID(),
		"preauthorization_id", pc.PreauthorizationID(),
	)

	return &CheckoutResult{
		OrderID:            cmd.OrderID,
		ProcessID:          pc.ProcessID(),
		PaymentType:        string(paymentType),
		ClientID:           pc.ClientID(),
		PaymentMethodID:    pc.PaymentMethodID(),
		TransactionID:      pc.TransactionID(),
		PreauthorizationID: pc.PreauthorizationID(),
		RefundID:           pc.RefundID(),
		TopUpTransactionID: pc.TopUpTransactionID(),
		Mode:               mode.String(),
	}, nil
}

func (s *CheckoutService) storedIdentifiers(ctx context.Context, customerID string) (domain.CustomerRecord, error) {
	record, err := s.customers.FindByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CustomerRecord{CustomerID: customerID}, nil
		}
		return domain.CustomerRecord{}, err
	}
	return *record, nil
}

// persist stores changed customer ids and, when money moved, the order in
// one transaction.
func (s *CheckoutService) persist(ctx context.Context, cmd CheckoutCommand, paymentType domain.PaymentType, stored domain.CustomerRecord, pc *domain.ProcessingContext, order *domain.OrderRecord) error {
	return s.uow.WithTransaction(ctx, func(ctx context.Context, customers application.CustomerStore, orders application.OrderStore) error {
		if id := pc.ClientID(); id != "" && id != stored.ClientID {
			if err := customers.SaveClient(ctx, cmd.CustomerID, id); err != nil {
				return err
			}
		}

		storedMethod := stored.PaymentMethodID(paymentType)
		switch id := pc.PaymentMethodID(); {
		case id != "" && id != storedMethod:
			if err := customers.SavePaymentMethod(ctx, cmd.CustomerID, paymentType, id); err != nil {
				return err
			}
		case id == "" && cmd.NewCard && storedMethod != "":
			if err := customers.ClearPaymentMethod(ctx, cmd.CustomerID, paymentType); err != nil {
				return err
			}
		}

		if order == nil {
			return nil
		}
		return orders.Save(ctx, order)
	})
}

func (s *CheckoutService) release(ctx context.Context, token string) {
	if err := s.guard.Release(ctx, token); err != nil {
		s.logger.Warn("failed to release attempt guard", "error", err)
	}
}
