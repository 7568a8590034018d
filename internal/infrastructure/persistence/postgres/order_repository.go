package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/domain"
)

var ErrOrderExists = errors.New("order already exists")

const orderColumns = `order_id, customer_id, payment_type, process_id, transaction_id,
		       preauthorization_id, amount_cents, currency, mode, cancelled,
		       needs_review, created_at, updated_at`

type OrderRepository struct {
	q   Executor
	now func() time.Time
}

var _ application.OrderStore = (*OrderRepository)(nil)

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{q: db.Pool, now: time.Now}
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.OrderRecord) error {
	query := `
		INSERT INTO orders (
			order_id, customer_id, payment_type, process_id, transaction_id,
			preauthorization_id, amount_cents, currency, mode, cancelled,
			needs_review, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := r.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	m := toOrderModel(order)
	_, err := r.q.Exec(ctx, query,
		m.OrderID,
		m.CustomerID,
		m.PaymentType,
		m.ProcessID,
		m.TransactionID,
		m.PreauthorizationID,
		m.AmountCents,
		m.Currency,
		m.Mode,
		m.Cancelled,
		m.NeedsReview,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", order.OrderID, ErrOrderExists)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// FindByOrderID returns domain.ErrNotFound for an unknown order.
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	m, err := scanOrder(r.q.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return toOrderRecord(m), nil
}

// MarkCancelled persists the cancellation flag. Orders that were captured in
// the meantime are left untouched and reported as already captured.
func (r *OrderRepository) MarkCancelled(ctx context.Context, order *domain.OrderRecord) error {
	query := `
		UPDATE orders SET cancelled = TRUE, updated_at = $2
		WHERE order_id = $1 AND transaction_id IS NULL
	`

	tag, err := r.q.Exec(ctx, query, order.OrderID, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, order.OrderID, domain.ErrOrderAlreadyCaptured)
	}
	return nil
}

// SetTransaction records the capture of a preauthorized order and clears its
// review flag. It refuses cancelled and already captured orders.
func (r *OrderRepository) SetTransaction(ctx context.Context, orderID, transactionID string) error {
	query := `
		UPDATE orders SET transaction_id = $2, needs_review = FALSE, updated_at = $3
		WHERE order_id = $1 AND transaction_id IS NULL AND NOT cancelled
	`

	tag, err := r.q.Exec(ctx, query, orderID, transactionID, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if existing.Cancelled {
			return domain.ErrOrderCancelled
		}
		return domain.ErrOrderAlreadyCaptured
	}
	return nil
}

// FindStalePreauthorizations lists uncaptured, uncancelled preauthorized
// orders created before cutoff, oldest first.
func (r *OrderRepository) FindStalePreauthorizations(ctx context.Context, cutoff time.Time, limit int) ([]*domain.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE preauthorization_id IS NOT NULL
		  AND transaction_id IS NULL
		  AND NOT cancelled
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale preauthorizations: %w", err)
	}
	defer rows.Close()

	var orders []*domain.OrderRecord
	for rows.Next() {
		m, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, toOrderRecord(m))
	}

	return orders, rows.Err()
}

// FindNeedingReview lists orders flagged for manual follow-up, oldest first.
func (r *OrderRepository) FindNeedingReview(ctx context.Context, limit int) ([]*domain.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE needs_review
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders needing review: %w", err)
	}
	defer rows.Close()

	var orders []*domain.OrderRecord
	for rows.Next() {
		m, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, toOrderRecord(m))
	}

	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (OrderModel, error) {
	var m OrderModel
	err := row.Scan(
		&m.OrderID,
		&m.CustomerID,
		&m.PaymentType,
		&m.ProcessID,
		&m.TransactionID,
		&m.PreauthorizationID,
		&m.AmountCents,
		&m.Currency,
		&m.Mode,
		&m.Cancelled,
		&m.NeedsReview,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (r *OrderRepository) missingOr(ctx context.Context, orderID string, fallback error) error {
	if _, err := r.FindByOrderID(ctx, orderID); err != nil {
		return err
	}
	return fallback
}
