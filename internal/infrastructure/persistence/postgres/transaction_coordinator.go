package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/k10r/paymill-shopware/internal/application"
)

// TransactionCoordinator manages transactions across multiple repositories
type TransactionCoordinator struct {
	pool *pgxpool.Pool
}

var _ application.UnitOfWork = (*TransactionCoordinator)(nil)

func NewTransactionCoordinator(db *DB) *TransactionCoordinator {
	return &TransactionCoordinator{
		pool: db.Pool,
	}
}

// WithTransaction executes a function within a database transaction
// The function receives repository instances that use the transaction
func (tc *TransactionCoordinator) WithTransaction(
	ctx context.Context,
	fn func(ctx context.Context, customers application.CustomerStore, orders application.OrderStore) error,
) error {
	tx, err := tc.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	customers := NewCustomerRepository(&DB{Pool: tc.pool})
	customers.q = tx
	orders := NewOrderRepository(&DB{Pool: tc.pool})
	orders.q = tx

	if err := fn(ctx, customers, orders); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
