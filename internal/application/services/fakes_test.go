package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/infrastructure/lock"
)

// memCustomers is an in-memory CustomerStore.
type memCustomers struct {
	mu      sync.Mutex
	records map[string]domain.CustomerRecord
	err     error
}

func newMemCustomers() *memCustomers {
	return &memCustomers{records: map[string]domain.CustomerRecord{}}
}

func (m *memCustomers) FindByCustomerID(_ context.Context, customerID string) (*domain.CustomerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.records[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	return &r, nil
}

func (m *memCustomers) SaveClient(_ context.Context, customerID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[customerID]
	r.CustomerID = customerID
	r.ClientID = clientID
	m.records[customerID] = r
	return nil
}

func (m *memCustomers) SavePaymentMethod(_ context.Context, customerID string, paymentType domain.PaymentType, paymentMethodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[customerID]
	r.CustomerID = customerID
	methods := make(map[domain.PaymentType]string, len(r.PaymentMethods)+1)
	for k, v := range r.PaymentMethods {
		methods[k] = v
	}
	methods[paymentType] = paymentMethodID
	r.PaymentMethods = methods
	m.records[customerID] = r
	return nil
}

func (m *memCustomers) ClearPaymentMethod(_ context.Context, customerID string, paymentType domain.PaymentType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[customerID]
	methods := make(map[domain.PaymentType]string, len(r.PaymentMethods))
	for k, v := range r.PaymentMethods {
		if k != paymentType {
			methods[k] = v
		}
	}
	r.PaymentMethods = methods
	m.records[customerID] = r
	return nil
}

func (m *memCustomers) get(customerID string) domain.CustomerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[customerID]
}

// memOrders is an in-memory OrderStore.
type memOrders struct {
	mu      sync.Mutex
	records map[string]domain.OrderRecord
	saveErr error
	findErr error
}

func newMemOrders() *memOrders {
	return &memOrders{records: map[string]domain.OrderRecord{}}
}

func (m *memOrders) Save(_ context.Context, order *domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[order.OrderID] = *order
	return nil
}

func (m *memOrders) FindByOrderID(_ context.Context, orderID string) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.records[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return &r, nil
}

func (m *memOrders) MarkCancelled(_ context.Context, order *domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[order.OrderID]
	if !ok {
		return domain.ErrNotFound
	}
	if r.TransactionID != "" {
		return domain.ErrOrderAlreadyCaptured
	}
	r.Cancelled = true
	m.records[order.OrderID] = r
	return nil
}

func (m *memOrders) SetTransaction(_ context.Context, orderID, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	r.TransactionID = transactionID
	r.NeedsReview = false
	m.records[orderID] = r
	return nil
}

func (m *memOrders) FindNeedingReview(_ context.Context, limit int) ([]*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*domain.OrderRecord
	for _, r := range m.records {
		if r.NeedsReview && len(out) < limit {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m *memOrders) put(order domain.OrderRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[order.OrderID] = order
}

func (m *memOrders) get(orderID string) (domain.OrderRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[orderID]
	return r, ok
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memUnitOfWork hands the in-memory stores to fn without isolation.
type memUnitOfWork struct {
	customers *memCustomers
	orders    *memOrders
}

func (u *memUnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context, customers application.CustomerStore, orders application.OrderStore) error) error {
	return fn(ctx, u.customers, u.orders)
}

// fakeGuard mirrors the redis guard states in memory.
type fakeGuard struct {
	mu         sync.Mutex
	status     map[string]string
	acquireErr error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{status: map[string]string{}}
}

func (g *fakeGuard) Acquire(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.acquireErr != nil {
		return g.acquireErr
	}
	switch g.status[token] {
	case lock.StatusInProgress:
		return lock.ErrAttemptInProgress
	case lock.StatusCompleted:
		return lock.ErrAttemptCompleted
	}
	g.status[token] = lock.StatusInProgress
	return nil
}

func (g *fakeGuard) Complete(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[token] = lock.StatusCompleted
	return nil
}

func (g *fakeGuard) Release(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status[token] == lock.StatusInProgress {
		delete(g.status, token)
	}
	return nil
}

func (g *fakeGuard) Status(token string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status[token]
}

// fakeOrchestrator scripts ProcessPayment and Capture.
type fakeOrchestrator struct {
	mu           sync.Mutex
	mode         domain.Mode
	processFn    func(pc *domain.ProcessingContext, capture bool) bool
	captureFn    func(pc *domain.ProcessingContext) bool
	processCalls int
	captureCalls int
	lastContext  *domain.ProcessingContext
	lastCtxErr   error
}

func (f *fakeOrchestrator) Mode(*domain.ProcessingContext, bool) domain.Mode {
	if f.mode == 0 {
		return domain.ModeDirect
	}
	return f.mode
}

func (f *fakeOrchestrator) ProcessPayment(ctx context.Context, pc *domain.ProcessingContext, capture bool) bool {
	f.mu.Lock()
	f.processCalls++
	f.lastContext = pc
	f.lastCtxErr = ctx.Err()
	fn := f.processFn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(pc, capture)
}

func (f *fakeOrchestrator) Capture(ctx context.Context, pc *domain.ProcessingContext) bool {
	f.mu.Lock()
	f.captureCalls++
	f.lastContext = pc
	f.lastCtxErr = ctx.Err()
	fn := f.captureFn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(pc)
}

func (f *fakeOrchestrator) CaptureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captureCalls
}

// chargeSucceeds fills in ids the way a successful direct charge would.
func chargeSucceeds(pc *domain.ProcessingContext, _ bool) bool {
	if pc.ClientID() == "" {
		_ = pc.SetClientID("client_new")
	}
	if pc.PaymentMethodID() == "" {
		_ = pc.SetPaymentMethodID("pay_new")
	}
	_ = pc.SetTransactionID("tran_1")
	return true
}

// chargeDeclined creates client and payment method, then fails on the charge.
func chargeDeclined(pc *domain.ProcessingContext, _ bool) bool {
	if pc.ClientID() == "" {
		_ = pc.SetClientID("client_new")
	}
	if pc.PaymentMethodID() == "" {
		_ = pc.SetPaymentMethodID("pay_new")
	}
	pc.Fail(domain.NewInvalidResponseCodeError("Transaction", 50102))
	return false
}

// chargedThenRefundFailed charges the authorized amount and then fails the
// corrective refund, leaving money moved on a failed attempt.
func chargedThenRefundFailed(pc *domain.ProcessingContext, _ bool) bool {
	_ = pc.SetClientID("client_new")
	_ = pc.SetPaymentMethodID("pay_new")
	_ = pc.SetTransactionID("tran_1")
	pc.Fail(domain.NewInvalidResponseCodeError("Refund", 50000))
	return false
}

var errStore = errors.New("connection reset by peer")
