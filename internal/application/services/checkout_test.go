package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/application/services"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
	"github.com/k10r/paymill-shopware/internal/gateway/mocks"
	"github.com/k10r/paymill-shopware/internal/metrics"
	"github.com/k10r/paymill-shopware/internal/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type CheckoutServiceTestSuite struct {
	suite.Suite
	customers    *memCustomers
	orders       *memOrders
	guard        *fakeGuard
	orderLocks   *fakeGuard
	orchestrator *fakeOrchestrator
	registry     *prometheus.Registry
	service      *services.CheckoutService
}

func TestCheckoutServiceSuite(t *testing.T) {
	suite.Run(t, new(CheckoutServiceTestSuite))
}

// SetupTest runs before each test
func (suite *CheckoutServiceTestSuite) SetupTest() {
	suite.customers = newMemCustomers()
	suite.orders = newMemOrders()
	suite.guard = newFakeGuard()
	suite.orderLocks = newFakeGuard()
	suite.orchestrator = &fakeOrchestrator{}
	suite.registry = prometheus.NewRegistry()
	suite.service = services.NewCheckoutService(
		suite.orchestrator,
		suite.customers,
		suite.orders,
		&memUnitOfWork{customers: suite.customers, orders: suite.orders},
		suite.guard,
		suite.orderLocks,
		metrics.New(suite.registry),
		discardLogger(),
		"shop-plugin",
	)
}

func defaultCheckoutCommand() services.CheckoutCommand {
	return services.CheckoutCommand{
		OrderID:            "order-1",
		CustomerID:         "cust-1",
		Token:              "tok_abc123",
		Amount:             1000,
		Currency:           "EUR",
		CustomerName:       "Jane Doe",
		CustomerEmail:      "jane@example.com",
		Description:        "Order 1",
		CaptureImmediately: true,
	}
}

// ============================================================================
// HAPPY PATH TESTS
// ============================================================================

func (suite *CheckoutServiceTestSuite) Test_Checkout_Success() {
	t := suite.T()
	suite.orchestrator.processFn = chargeSucceeds

	result, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, "client_new", result.ClientID)
	assert.Equal(t, "pay_new", result.PaymentMethodID)
	assert.Equal(t, "tran_1", result.TransactionID)
	assert.Equal(t, "direct", result.Mode)

	order, err := suite.orders.FindByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "tran_1", order.TransactionID)
	assert.Equal(t, int64(1000), order.Amount)
	assert.Equal(t, "direct", order.Mode)

	stored := suite.customers.get("cust-1")
	assert.Equal(t, "client_new", stored.ClientID)
	assert.Equal(t, "pay_new", stored.PaymentMethodID(domain.PaymentTypeCreditCard))

	assert.Equal(t, "COMPLETED", suite.guard.Status("tok_abc123"))
	assert.Empty(t, suite.orderLocks.Status("order-1"))
	assert.Equal(t, "shop-plugin", suite.orchestrator.lastContext.Source())
	assert.Equal(t, suite.orchestrator.lastContext.ProcessID(), result.ProcessID)
	assert.Equal(t, result.ProcessID, order.ProcessID)
	assert.Equal(t, domain.PaymentTypeCreditCard, order.PaymentType)
	assert.False(t, order.NeedsReview)

	count, err := testutil.GatherAndCount(suite.registry, "paymill_checkout_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_ReusesStoredIdentifiers() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.customers.SaveClient(ctx, "cust-1", "client_old"))
	require.NoError(t, suite.customers.SavePaymentMethod(ctx, "cust-1", domain.PaymentTypeCreditCard, "pay_old"))
	suite.orchestrator.processFn = chargeSucceeds

	result, err := suite.service.Checkout(ctx, defaultCheckoutCommand())

	require.NoError(t, err)
	assert.Equal(t, "client_old", suite.orchestrator.lastContext.Input().ClientID)
	assert.Equal(t, "pay_old", suite.orchestrator.lastContext.Input().PaymentMethodID)
	assert.Equal(t, "client_old", result.ClientID)
	assert.Equal(t, "pay_old", result.PaymentMethodID)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_NewCardReplacesStoredPaymentMethod() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.customers.SaveClient(ctx, "cust-1", "client_old"))
	require.NoError(t, suite.customers.SavePaymentMethod(ctx, "cust-1", domain.PaymentTypeCreditCard, "pay_old"))
	suite.orchestrator.processFn = chargeSucceeds

	cmd := defaultCheckoutCommand()
	cmd.NewCard = true
	_, err := suite.service.Checkout(ctx, cmd)

	require.NoError(t, err)
	assert.Empty(t, suite.orchestrator.lastContext.Input().PaymentMethodID)
	assert.Equal(t, "pay_new", suite.customers.get("cust-1").PaymentMethodID(domain.PaymentTypeCreditCard))
	assert.Equal(t, "client_old", suite.customers.get("cust-1").ClientID)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_NewCardFailureForgetsStoredPaymentMethod() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.customers.SaveClient(ctx, "cust-1", "client_old"))
	require.NoError(t, suite.customers.SavePaymentMethod(ctx, "cust-1", domain.PaymentTypeCreditCard, "pay_old"))
	suite.orchestrator.processFn = func(pc *domain.ProcessingContext, _ bool) bool {
		pc.Fail(domain.NewInvalidIDError("Payment"))
		return false
	}

	cmd := defaultCheckoutCommand()
	cmd.NewCard = true
	_, err := suite.service.Checkout(ctx, cmd)

	require.Error(t, err)
	assert.Empty(t, suite.customers.get("cust-1").PaymentMethodID(domain.PaymentTypeCreditCard))
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_PaymentTypeSelectsStoredMethod() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.customers.SaveClient(ctx, "cust-1", "client_old"))
	require.NoError(t, suite.customers.SavePaymentMethod(ctx, "cust-1", domain.PaymentTypeCreditCard, "pay_cc"))
	require.NoError(t, suite.customers.SavePaymentMethod(ctx, "cust-1", domain.PaymentTypeDirectDebit, "pay_elv"))
	suite.orchestrator.processFn = chargeSucceeds

	cmd := defaultCheckoutCommand()
	cmd.PaymentType = "elv"
	result, err := suite.service.Checkout(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, "pay_elv", suite.orchestrator.lastContext.Input().PaymentMethodID)
	assert.Equal(t, "elv", result.PaymentType)

	order, ok := suite.orders.get("order-1")
	require.True(t, ok)
	assert.Equal(t, domain.PaymentTypeDirectDebit, order.PaymentType)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_NewPaymentMethodIsStoredUnderItsType() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.customers.SavePaymentMethod(ctx, "cust-1", domain.PaymentTypeCreditCard, "pay_cc"))
	suite.orchestrator.processFn = chargeSucceeds

	cmd := defaultCheckoutCommand()
	cmd.PaymentType = "paymilldebit"
	_, err := suite.service.Checkout(ctx, cmd)

	require.NoError(t, err)
	assert.Empty(t, suite.orchestrator.lastContext.Input().PaymentMethodID)
	stored := suite.customers.get("cust-1")
	assert.Equal(t, "pay_cc", stored.PaymentMethodID(domain.PaymentTypeCreditCard))
	assert.Equal(t, "pay_new", stored.PaymentMethodID(domain.PaymentTypeDirectDebit))
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_CancelledRequestDoesNotAbortCharge() {
	t := suite.T()
	suite.orchestrator.processFn = chargeSucceeds

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := suite.service.Checkout(ctx, defaultCheckoutCommand())

	require.NoError(t, err)
	assert.NoError(t, suite.orchestrator.lastCtxErr)
	assert.Equal(t, "tran_1", result.TransactionID)
	assert.Equal(t, 1, suite.orders.count())
}

// ============================================================================
// FAILURE TESTS
// ============================================================================

func (suite *CheckoutServiceTestSuite) Test_Checkout_DeclinedKeepsIdentifiersForRetry() {
	t := suite.T()
	suite.orchestrator.processFn = chargeDeclined

	result, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	require.Error(t, err)
	assert.Nil(t, result)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrCodeInvalidResponseCode, svcErr.Code)
	assert.Equal(t, 50102, svcErr.ResponseCode)
	assert.Equal(t, http.StatusPaymentRequired, svcErr.HTTPStatus)

	stored := suite.customers.get("cust-1")
	assert.Equal(t, "client_new", stored.ClientID)
	assert.Equal(t, "pay_new", stored.PaymentMethodID(domain.PaymentTypeCreditCard))
	assert.Equal(t, 0, suite.orders.count())

	// Released so the shopper may retry with the same token.
	assert.Empty(t, suite.guard.Status("tok_abc123"))
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_FailureAfterChargeFlagsOrderForReview() {
	t := suite.T()
	suite.orchestrator.mode = domain.ModeReconcile
	suite.orchestrator.processFn = chargedThenRefundFailed

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrCodeInvalidResponseCode, svcErr.Code)
	assert.Equal(t, 50000, svcErr.ResponseCode)

	order, found := suite.orders.get("order-1")
	require.True(t, found)
	assert.Equal(t, "tran_1", order.TransactionID)
	assert.True(t, order.NeedsReview)
	assert.Equal(t, "reconcile", order.Mode)
	assert.Equal(t, suite.orchestrator.lastContext.ProcessID(), order.ProcessID)

	assert.Equal(t, "COMPLETED", suite.guard.Status("tok_abc123"))
	assert.Empty(t, suite.orderLocks.Status("order-1"))

	count, err := testutil.GatherAndCount(suite.registry, "paymill_checkout_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_RetryAfterFailedChargeIsRefused() {
	t := suite.T()
	suite.orchestrator.processFn = chargedThenRefundFailed
	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())
	require.Error(t, err)

	suite.orchestrator.processFn = chargeSucceeds

	_, err = suite.service.Checkout(context.Background(), defaultCheckoutCommand())
	assert.Equal(t, http.StatusConflict, application.ToHTTPStatus(err))

	cmd := defaultCheckoutCommand()
	cmd.OrderID = "order-2"
	_, err = suite.service.Checkout(context.Background(), cmd)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeDuplicateAttempt, svcErr.Code)

	assert.Equal(t, 1, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_HeldButCaptureFailedKeepsPreauthorization() {
	t := suite.T()
	suite.orchestrator.mode = domain.ModePreauthorize
	suite.orchestrator.processFn = func(pc *domain.ProcessingContext, _ bool) bool {
		_ = pc.SetClientID("client_new")
		_ = pc.SetPaymentMethodID("pay_new")
		_ = pc.SetPreauthorizationID("preauth_1")
		pc.Fail(domain.NewGatewayUnreachableError("Transaction", errors.New("connection reset")))
		return false
	}

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	assert.Equal(t, http.StatusBadGateway, application.ToHTTPStatus(err))
	order, found := suite.orders.get("order-1")
	require.True(t, found)
	assert.Equal(t, "preauth_1", order.PreauthorizationID)
	assert.Empty(t, order.TransactionID)
	assert.True(t, order.NeedsReview)
	assert.NoError(t, order.CanCapture())
	assert.Equal(t, "COMPLETED", suite.guard.Status("tok_abc123"))
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_UnknownPaymentType() {
	t := suite.T()
	cmd := defaultCheckoutCommand()
	cmd.PaymentType = "paypal"

	_, err := suite.service.Checkout(context.Background(), cmd)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
	assert.Equal(t, 0, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_OrderLockedRefused() {
	t := suite.T()
	require.NoError(t, suite.orderLocks.Acquire(context.Background(), "order-1"))

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeOrderBusy, svcErr.Code)
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus)
	assert.Equal(t, 0, suite.orchestrator.processCalls)
	assert.Empty(t, suite.guard.Status("tok_abc123"))
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_OrderLookupTimeout() {
	t := suite.T()
	suite.orders.findErr = fmt.Errorf("find order: %w", context.DeadlineExceeded)

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	assert.Equal(t, http.StatusRequestTimeout, application.ToHTTPStatus(err))
	assert.Equal(t, application.ErrCodeTimeout, application.ToErrorCode(err))
	assert.Empty(t, suite.orderLocks.Status("order-1"))
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_RetryAfterDeclineReusesIdentifiers() {
	t := suite.T()
	suite.orchestrator.processFn = chargeDeclined
	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())
	require.Error(t, err)

	suite.orchestrator.processFn = chargeSucceeds
	result, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	require.NoError(t, err)
	assert.Equal(t, "client_new", suite.orchestrator.lastContext.Input().ClientID)
	assert.Equal(t, "pay_new", suite.orchestrator.lastContext.Input().PaymentMethodID)
	assert.Equal(t, "tran_1", result.TransactionID)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_InvalidCommand() {
	t := suite.T()
	cmd := defaultCheckoutCommand()
	cmd.OrderID = ""

	_, err := suite.service.Checkout(context.Background(), cmd)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
	assert.Equal(t, 0, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_OrderAlreadyProcessed() {
	t := suite.T()
	suite.orders.put(domain.OrderRecord{OrderID: "order-1", TransactionID: "tran_0"})

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	assert.Equal(t, http.StatusConflict, application.ToHTTPStatus(err))
	assert.Equal(t, 0, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_DuplicateTokenRefused() {
	t := suite.T()
	require.NoError(t, suite.guard.Acquire(context.Background(), "tok_abc123"))

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeDuplicateAttempt, svcErr.Code)
	assert.Equal(t, 0, suite.orchestrator.processCalls)

	count, err := testutil.GatherAndCount(suite.registry, "paymill_checkout_duplicate_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_CompletedTokenRefused() {
	t := suite.T()
	suite.orchestrator.processFn = chargeSucceeds
	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())
	require.NoError(t, err)

	cmd := defaultCheckoutCommand()
	cmd.OrderID = "order-2"
	_, err = suite.service.Checkout(context.Background(), cmd)

	assert.Equal(t, http.StatusConflict, application.ToHTTPStatus(err))
	assert.Equal(t, 1, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_GuardUnavailableFailsClosed() {
	t := suite.T()
	suite.guard.acquireErr = errors.New("dial tcp: connection refused")

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	assert.Equal(t, http.StatusInternalServerError, application.ToHTTPStatus(err))
	assert.Equal(t, 0, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_CustomerStoreFailureReleasesGuard() {
	t := suite.T()
	suite.customers.err = errStore

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	assert.ErrorIs(t, err, errStore)
	assert.Empty(t, suite.guard.Status("tok_abc123"))
	assert.Equal(t, 0, suite.orchestrator.processCalls)
}

func (suite *CheckoutServiceTestSuite) Test_Checkout_OrderStoreFailureAfterChargeKeepsTokenUsed() {
	t := suite.T()
	suite.orchestrator.processFn = chargeSucceeds
	suite.orders.saveErr = errStore

	_, err := suite.service.Checkout(context.Background(), defaultCheckoutCommand())

	assert.Equal(t, http.StatusInternalServerError, application.ToHTTPStatus(err))
	assert.Equal(t, "COMPLETED", suite.guard.Status("tok_abc123"))
}

// ============================================================================
// END-TO-END WITH THE ORCHESTRATOR
// ============================================================================

func TestCheckout_WithOrchestrator_DirectCharge(t *testing.T) {
	clientsMock := mocks.NewMockResourceClient(t)
	paymentsMock := mocks.NewMockResourceClient(t)
	transactionsMock := mocks.NewMockResourceClient(t)

	clientsMock.EXPECT().
		Create(mock.Anything, mock.Anything).
		Return(gateway.NewEnvelope(map[string]any{"id": "client_1"}), nil).
		Once()
	paymentsMock.EXPECT().
		Create(mock.Anything, mock.MatchedBy(func(p gateway.Params) bool {
			return p[gateway.ParamToken] == "tok_abc123" && p[gateway.ParamClient] == "client_1"
		})).
		Return(gateway.NewEnvelope(map[string]any{"id": "pay_1"}), nil).
		Once()
	transactionsMock.EXPECT().
		Create(mock.Anything, mock.MatchedBy(func(p gateway.Params) bool {
			amount, ok := p.Amount()
			return ok && amount == 1000 && p[gateway.ParamPayment] == "pay_1"
		})).
		Return(gateway.NewEnvelope(map[string]any{
			"data": map[string]any{"id": "tran_1", "status": "closed", "response_code": 20000},
		}), nil).
		Once()

	orch := orchestrator.New(gateway.Clients{
		Clients:        clientsMock,
		PaymentMethods: paymentsMock,
		Transactions:   transactionsMock,
	})

	customers := newMemCustomers()
	orders := newMemOrders()
	service := services.NewCheckoutService(
		orch,
		customers,
		orders,
		&memUnitOfWork{customers: customers, orders: orders},
		nil,
		nil,
		nil,
		discardLogger(),
		"",
	)

	result, err := service.Checkout(context.Background(), defaultCheckoutCommand())

	require.NoError(t, err)
	assert.Equal(t, "tran_1", result.TransactionID)
	assert.Equal(t, "client_1", customers.get("cust-1").ClientID)
	assert.Equal(t, "pay_1", customers.get("cust-1").PaymentMethodID(domain.PaymentTypeCreditCard))
}

func TestCheckout_WithOrchestrator_RefundFailureKeepsTokenUsed(t *testing.T) {
	clientsMock := mocks.NewMockResourceClient(t)
	paymentsMock := mocks.NewMockResourceClient(t)
	transactionsMock := mocks.NewMockResourceClient(t)
	refundsMock := mocks.NewMockResourceClient(t)

	clientsMock.EXPECT().
		Create(mock.Anything, mock.Anything).
		Return(gateway.NewEnvelope(map[string]any{"id": "client_1"}), nil).
		Once()
	paymentsMock.EXPECT().
		Create(mock.Anything, mock.Anything).
		Return(gateway.NewEnvelope(map[string]any{"id": "pay_1"}), nil).
		Once()
	transactionsMock.EXPECT().
		Create(mock.Anything, mock.MatchedBy(func(p gateway.Params) bool {
			amount, ok := p.Amount()
			return ok && amount == 1500
		})).
		Return(gateway.NewEnvelope(map[string]any{
			"data": map[string]any{"id": "tran_1", "status": "closed", "response_code": 20000},
		}), nil).
		Once()
	refundsMock.EXPECT().
		Create(mock.Anything, mock.Anything).
		Return(gateway.NewEnvelope(map[string]any{
			"data": map[string]any{"response_code": 50000},
		}), nil).
		Once()

	orch := orchestrator.New(gateway.Clients{
		Clients:        clientsMock,
		PaymentMethods: paymentsMock,
		Transactions:   transactionsMock,
		Refunds:        refundsMock,
	})

	customers := newMemCustomers()
	orders := newMemOrders()
	guard := newFakeGuard()
	service := services.NewCheckoutService(
		orch,
		customers,
		orders,
		&memUnitOfWork{customers: customers, orders: orders},
		guard,
		newFakeGuard(),
		nil,
		discardLogger(),
		"",
	)

	cmd := defaultCheckoutCommand()
	authorized := int64(1500)
	cmd.AuthorizedAmount = &authorized

	_, err := service.Checkout(context.Background(), cmd)
	require.Error(t, err)

	order, found := orders.get("order-1")
	require.True(t, found)
	assert.Equal(t, "tran_1", order.TransactionID)
	assert.True(t, order.NeedsReview)
	assert.Equal(t, "COMPLETED", guard.Status("tok_abc123"))

	cmd.OrderID = "order-2"
	_, err = service.Checkout(context.Background(), cmd)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeDuplicateAttempt, svcErr.Code)
}
