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

type CustomerRepository struct {
	q   Executor
	now func() time.Time
}

var _ application.CustomerStore = (*CustomerRepository)(nil)

func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{q: db.Pool, now: time.Now}
}

// FindByCustomerID returns domain.ErrNotFound for a customer without stored ids.
func (r *CustomerRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.CustomerRecord, error) {
	query := `
		SELECT customer_id, client_id, updated_at
		FROM customers WHERE customer_id = $1
	`

	var m CustomerModel
	err := r.q.QueryRow(ctx, query, customerID).Scan(
		&m.CustomerID,
		&m.ClientID,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}

	methods, err := r.paymentMethods(ctx, customerID)
	if err != nil {
		return nil, err
	}

	return toCustomerRecord(m, methods), nil
}

func (r *CustomerRepository) paymentMethods(ctx context.Context, customerID string) ([]PaymentMethodModel, error) {
	query := `
		SELECT customer_id, payment_type, payment_method_id, updated_at
		FROM customer_payment_methods WHERE customer_id = $1
		ORDER BY payment_type
	`

	rows, err := r.q.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var methods []PaymentMethodModel
	for rows.Next() {
		var pm PaymentMethodModel
		if err := rows.Scan(&pm.CustomerID, &pm.PaymentType, &pm.PaymentMethodID, &pm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, pm)
	}

	return methods, rows.Err()
}

func (r *CustomerRepository) SaveClient(ctx context.Context, customerID, clientID string) error {
	query := `
		INSERT INTO customers (customer_id, client_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id)
		DO UPDATE SET client_id = EXCLUDED.client_id, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.q.Exec(ctx, query, customerID, clientID, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

// SavePaymentMethod stores the payment method for one payment type, leaving
// the other types untouched.
func (r *CustomerRepository) SavePaymentMethod(ctx context.Context, customerID string, paymentType domain.PaymentType, paymentMethodID string) error {
	now := r.now().UTC()

	ensureCustomer := `
		INSERT INTO customers (customer_id, updated_at)
		VALUES ($1, $2)
		ON CONFLICT (customer_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, ensureCustomer, customerID, now); err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	query := `
		INSERT INTO customer_payment_methods (customer_id, payment_type, payment_method_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, payment_type)
		DO UPDATE SET payment_method_id = EXCLUDED.payment_method_id, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.q.Exec(ctx, query, customerID, string(paymentType), paymentMethodID, now); err != nil {
		return fmt.Errorf("failed to save payment method: %w", err)
	}
	return nil
}

// ClearPaymentMethod forgets the stored payment method of one payment type,
// e.g. after the customer entered a new card.
func (r *CustomerRepository) ClearPaymentMethod(ctx context.Context, customerID string, paymentType domain.PaymentType) error {
	query := `
		DELETE FROM customer_payment_methods
		WHERE customer_id = $1 AND payment_type = $2
	`

	if _, err := r.q.Exec(ctx, query, customerID, string(paymentType)); err != nil {
		return fmt.Errorf("failed to clear payment method: %w", err)
	}
	return nil
}
