package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/infrastructure/lock"
)

func lockOrder(ctx context.Context, locks application.AttemptGuard, orderID string) error {
	if err := locks.Acquire(ctx, orderID); err != nil {
		if errors.Is(err, lock.ErrAttemptInProgress) || errors.Is(err, lock.ErrAttemptCompleted) {
			return application.NewOrderBusyError(err)
		}
		return application.NewInternalError(fmt.Errorf("acquire order lock: %w", err))
	}
	return nil
}

// unlockOrder survives a cancelled request context so the lock never
// outlives the operation by more than its TTL.
func unlockOrder(ctx context.Context, locks application.AttemptGuard, orderID string, logger *slog.Logger) {
	if err := locks.Release(context.WithoutCancel(ctx), orderID); err != nil {
		logger.Warn("failed to release order lock", "order_id", orderID, "error", err)
	}
}
