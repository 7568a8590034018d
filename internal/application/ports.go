package application

import (
	"context"

	"github.com/k10r/paymill-shopware/internal/domain"
)

// CustomerStore keeps the gateway client id per shop customer and one payment
// method id per customer and payment type.
type CustomerStore interface {
	FindByCustomerID(ctx context.Context, customerID string) (*domain.CustomerRecord, error)
	SaveClient(ctx context.Context, customerID, clientID string) error
	SavePaymentMethod(ctx context.Context, customerID string, paymentType domain.PaymentType, paymentMethodID string) error
	ClearPaymentMethod(ctx context.Context, customerID string, paymentType domain.PaymentType) error
}

// OrderStore keeps the gateway ids per order.
type OrderStore interface {
	Save(ctx context.Context, order *domain.OrderRecord) error
	FindByOrderID(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	MarkCancelled(ctx context.Context, order *domain.OrderRecord) error
	SetTransaction(ctx context.Context, orderID, transactionID string) error
	FindNeedingReview(ctx context.Context, limit int) ([]*domain.OrderRecord, error)
}

// UnitOfWork runs fn with stores bound to one database transaction.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, customers CustomerStore, orders OrderStore) error) error
}

// AttemptGuard marks a key in use. Keyed by payment token it makes the token
// single-use; keyed by order id it serializes operations on the order.
type AttemptGuard interface {
	Acquire(ctx context.Context, key string) error
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// PaymentOrchestrator is the checkout flow the services drive.
type PaymentOrchestrator interface {
	ProcessPayment(ctx context.Context, pc *domain.ProcessingContext, captureImmediately bool) bool
	Capture(ctx context.Context, pc *domain.ProcessingContext) bool
	Mode(pc *domain.ProcessingContext, captureImmediately bool) domain.Mode
}
