package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
)

// Preauthorization statuses reported by the gateway.
const (
	preauthStatusOpen    = "open"
	preauthStatusPending = "pending"
	preauthStatusClosed  = "closed"
	preauthStatusFailed  = "failed"
	preauthStatusDeleted = "deleted"

	// Reported when the gateway answers 404 for the preauthorization id.
	preauthStatusNotFound = "not_found"
)

type StaleOrderStore interface {
	FindStalePreauthorizations(ctx context.Context, cutoff time.Time, limit int) ([]*domain.OrderRecord, error)
	MarkCancelled(ctx context.Context, order *domain.OrderRecord) error
}

// ExpirationWorker cancels preauthorized orders whose hold the gateway no
// longer honours, so they cannot be captured later.
type ExpirationWorker struct {
	orders    StaleOrderStore
	preauths  gateway.ResourceClient
	interval  time.Duration
	maxAge    time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewExpirationWorker(
	orders StaleOrderStore,
	preauths gateway.ResourceClient,
	interval time.Duration,
	maxAge time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		orders:    orders,
		preauths:  preauths,
		interval:  interval,
		maxAge:    maxAge,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval, "max_age", w.maxAge)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if _, err := w.ProcessExpirations(ctx); err != nil {
		w.logger.Error("expiration processing failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			if _, err := w.ProcessExpirations(ctx); err != nil {
				w.logger.Error("expiration processing failed", "error", err)
			}
		}
	}
}

// ProcessExpirations runs one sweep and returns how many orders were cancelled.
func (w *ExpirationWorker) ProcessExpirations(ctx context.Context) (int, error) {
	cutoff := w.now().UTC().Add(-w.maxAge)

	stale, err := w.orders.FindStalePreauthorizations(ctx, cutoff, w.batchSize)
	if err != nil {
		return 0, err
	}

	if len(stale) == 0 {
		return 0, nil
	}

	var processed, expired int

	for _, order := range stale {
		cancelled, err := w.checkAndExpire(ctx, order)
		if err != nil {
			w.logger.Error("failed to process expiration",
				"order_id", order.OrderID,
				"preauthorization_id", order.PreauthorizationID,
				"error", err)
		} else if cancelled {
			expired++
		}
		processed++
	}

	w.logger.Info("processed expiration check",
		"processed", processed,
		"cancelled", expired)

	return expired, nil
}

func (w *ExpirationWorker) checkAndExpire(ctx context.Context, order *domain.OrderRecord) (bool, error) {
	env, err := w.preauths.Fetch(ctx, order.PreauthorizationID)
	if err != nil {
		return false, err
	}

	status, err := preauthorizationStatus(env)
	if err != nil {
		return false, err
	}

	switch status {
	case preauthStatusOpen, preauthStatusPending:
		w.logger.Warn("preauthorization still active at gateway despite age",
			"order_id", order.OrderID,
			"preauthorization_id", order.PreauthorizationID,
			"created_at", order.CreatedAt)
		return false, nil
	case preauthStatusClosed:
		w.logger.Warn("preauthorization closed at gateway but order has no transaction",
			"order_id", order.OrderID,
			"preauthorization_id", order.PreauthorizationID)
		return false, nil
	case preauthStatusDeleted, preauthStatusFailed, preauthStatusNotFound:
	default:
		return false, fmt.Errorf("unknown preauthorization status %q", status)
	}

	if err := w.markAsExpired(ctx, order); err != nil {
		if errors.Is(err, domain.ErrOrderAlreadyCaptured) {
			// Captured between the query and now.
			return false, nil
		}
		return false, err
	}
	w.logger.Info("order cancelled after preauthorization expired",
		"order_id", order.OrderID,
		"gateway_status", status)
	return true, nil
}

func (w *ExpirationWorker) markAsExpired(ctx context.Context, order *domain.OrderRecord) error {
	if err := order.Cancel(w.now().UTC()); err != nil {
		return err
	}

	return w.orders.MarkCancelled(ctx, order)
}

// preauthorizationStatus reads data.status. A body without data only counts
// as gone when the gateway answered 404; anything else (for example a 401)
// says nothing about the hold.
func preauthorizationStatus(env gateway.Envelope) (string, error) {
	if data, ok := env.Data(); ok {
		status, _ := gateway.StringField(data, "status")
		return status, nil
	}
	if env.NotFound() {
		return preauthStatusNotFound, nil
	}
	return "", fmt.Errorf("unexpected preauthorization response (status %d): %s", env.StatusCode, env.String())
}
