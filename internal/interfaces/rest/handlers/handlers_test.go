package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/application/services"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
	"github.com/k10r/paymill-shopware/internal/interfaces/rest/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckout struct {
	cmd services.CheckoutCommand
	res *services.CheckoutResult
	err error
}

func (f *fakeCheckout) Checkout(_ context.Context, cmd services.CheckoutCommand) (*services.CheckoutResult, error) {
	f.cmd = cmd
	return f.res, f.err
}

type fakeCapture struct {
	cmd   services.CaptureCommand
	order *domain.OrderRecord
	err   error
}

func (f *fakeCapture) Capture(_ context.Context, cmd services.CaptureCommand) (*domain.OrderRecord, error) {
	f.cmd = cmd
	return f.order, f.err
}

type fakeCancel struct {
	orderID string
	order   *domain.OrderRecord
	err     error
}

func (f *fakeCancel) Cancel(_ context.Context, orderID string) (*domain.OrderRecord, error) {
	f.orderID = orderID
	return f.order, f.err
}

type fakeQuery struct {
	order       *domain.OrderRecord
	env         gateway.Envelope
	review      []*domain.OrderRecord
	reviewLimit int
	err         error
}

func (f *fakeQuery) GetOrder(_ context.Context, orderID string) (*domain.OrderRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func (f *fakeQuery) FetchTransaction(_ context.Context, _ string) (gateway.Envelope, error) {
	return f.env, f.err
}

func (f *fakeQuery) ListNeedingReview(_ context.Context, limit int) ([]*domain.OrderRecord, error) {
	f.reviewLimit = limit
	return f.review, f.err
}

type testAPI struct {
	mux      *http.ServeMux
	checkout *fakeCheckout
	capture  *fakeCapture
	cancel   *fakeCancel
	query    *fakeQuery
}

func newTestAPI(checks map[string]handlers.HealthCheck) *testAPI {
	api := &testAPI{
		mux:      http.NewServeMux(),
		checkout: &fakeCheckout{},
		capture:  &fakeCapture{},
		cancel:   &fakeCancel{},
		query:    &fakeQuery{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handlers.NewHandlers(api.checkout, api.capture, api.cancel, api.query, checks, logger)
	h.Register(api.mux)
	return api
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code         string `json:"code"`
		Message      string `json:"message"`
		ResponseCode int    `json:"response_code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func preauthorizedOrder() *domain.OrderRecord {
	return &domain.OrderRecord{
		OrderID:            "order-1",
		CustomerID:         "cust-1",
		PreauthorizationID: "preauth_1",
		Amount:             1500,
		Currency:           "EUR",
		Mode:               domain.ModePreauthorize.String(),
	}
}

func TestCheckout(t *testing.T) {
	t.Run("creates and defaults to immediate capture", func(t *testing.T) {
		api := newTestAPI(nil)
		api.checkout.res = &services.CheckoutResult{
			OrderID:         "order-1",
			ProcessID:       "proc_1",
			Mode:            domain.ModeDirect.String(),
			PaymentType:     "cc",
			ClientID:        "client_1",
			PaymentMethodID: "pay_1",
			TransactionID:   "tran_1",
		}

		rec := api.do(http.MethodPost, "/api/v1/checkouts",
			`{"order_id":"order-1","customer_id":"cust-1","token":"tok_1","amount":1000,"currency":"EUR"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, api.checkout.cmd.CaptureImmediately)
		assert.Equal(t, int64(1000), api.checkout.cmd.Amount)
		assert.Nil(t, api.checkout.cmd.AuthorizedAmount)
		assert.Empty(t, api.checkout.cmd.PaymentType)

		env := decode(t, rec)
		assert.True(t, env.Success)
		var data handlers.CheckoutResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "tran_1", data.TransactionID)
		assert.Equal(t, "proc_1", data.ProcessID)
		assert.Equal(t, "cc", data.PaymentType)
		assert.Empty(t, data.PreauthorizationID)
	})

	t.Run("passes payment type", func(t *testing.T) {
		api := newTestAPI(nil)
		api.checkout.res = &services.CheckoutResult{OrderID: "order-1", PaymentType: "elv"}

		rec := api.do(http.MethodPost, "/api/v1/checkouts",
			`{"order_id":"order-1","customer_id":"cust-1","token":"tok_1","amount":1000,"currency":"EUR","payment_type":"elv"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "elv", api.checkout.cmd.PaymentType)
	})

	t.Run("passes deferred capture and authorized amount", func(t *testing.T) {
		api := newTestAPI(nil)
		api.checkout.res = &services.CheckoutResult{OrderID: "order-1"}

		rec := api.do(http.MethodPost, "/api/v1/checkouts",
			`{"order_id":"order-1","customer_id":"cust-1","token":"tok_1","amount":1000,"authorized_amount":1200,"currency":"EUR","capture_immediately":false,"new_card":true}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.False(t, api.checkout.cmd.CaptureImmediately)
		assert.True(t, api.checkout.cmd.NewCard)
		require.NotNil(t, api.checkout.cmd.AuthorizedAmount)
		assert.Equal(t, int64(1200), *api.checkout.cmd.AuthorizedAmount)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		api := newTestAPI(nil)

		rec := api.do(http.MethodPost, "/api/v1/checkouts", `{"order_id":"order-1","pan":"4111"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decode(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, application.ErrCodeInvalidInput, env.Error.Code)
	})

	t.Run("maps payment failures", func(t *testing.T) {
		api := newTestAPI(nil)
		api.checkout.err = application.NewPaymentFailedError(domain.ErrCodeInvalidResponseCode, 50102)

		rec := api.do(http.MethodPost, "/api/v1/checkouts",
			`{"order_id":"order-1","customer_id":"cust-1","token":"tok_1","amount":1000,"currency":"EUR"}`)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, domain.ErrCodeInvalidResponseCode, env.Error.Code)
		assert.Equal(t, 50102, env.Error.ResponseCode)
	})

	t.Run("maps duplicate attempts", func(t *testing.T) {
		api := newTestAPI(nil)
		api.checkout.err = application.NewDuplicateAttemptError(errors.New("in progress"))

		rec := api.do(http.MethodPost, "/api/v1/checkouts",
			`{"order_id":"order-1","customer_id":"cust-1","token":"tok_1","amount":1000,"currency":"EUR"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestCaptureOrder(t *testing.T) {
	t.Run("captures with path id", func(t *testing.T) {
		api := newTestAPI(nil)
		order := preauthorizedOrder()
		order.TransactionID = "tran_1"
		api.capture.order = order

		rec := api.do(http.MethodPost, "/api/v1/orders/order-1/capture", `{"description":"Order 1"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "order-1", api.capture.cmd.OrderID)
		assert.Equal(t, "Order 1", api.capture.cmd.Description)

		var data handlers.OrderResponse
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
		assert.True(t, data.Captured)
	})

	t.Run("accepts an empty body", func(t *testing.T) {
		api := newTestAPI(nil)
		api.capture.order = preauthorizedOrder()

		rec := api.do(http.MethodPost, "/api/v1/orders/order-1/capture", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, api.capture.cmd.Description)
	})

	t.Run("unknown order", func(t *testing.T) {
		api := newTestAPI(nil)
		api.capture.err = application.NewNotFoundError(domain.ErrNotFound)

		rec := api.do(http.MethodPost, "/api/v1/orders/nope/capture", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCancelOrder(t *testing.T) {
	api := newTestAPI(nil)
	order := preauthorizedOrder()
	order.Cancelled = true
	api.cancel.order = order

	rec := api.do(http.MethodPost, "/api/v1/orders/order-1/cancel", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order-1", api.cancel.orderID)

	var data handlers.OrderResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.True(t, data.Cancelled)
}

func TestGetOrder(t *testing.T) {
	api := newTestAPI(nil)
	api.query.order = preauthorizedOrder()

	rec := api.do(http.MethodGet, "/api/v1/orders/order-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var data handlers.OrderResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "preauth_1", data.PreauthorizationID)
	assert.False(t, data.Captured)
}

func TestListOrdersNeedingReview(t *testing.T) {
	t.Run("lists flagged orders", func(t *testing.T) {
		api := newTestAPI(nil)
		flagged := preauthorizedOrder()
		flagged.TransactionID = "tran_1"
		flagged.PaymentType = domain.PaymentTypeDirectDebit
		flagged.ProcessID = "proc_1"
		flagged.NeedsReview = true
		api.query.review = []*domain.OrderRecord{flagged}

		rec := api.do(http.MethodGet, "/api/v1/orders/review?limit=20", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 20, api.query.reviewLimit)
		var data []handlers.OrderResponse
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
		require.Len(t, data, 1)
		assert.Equal(t, "order-1", data[0].OrderID)
		assert.True(t, data[0].NeedsReview)
		assert.Equal(t, "elv", data[0].PaymentType)
		assert.Equal(t, "proc_1", data[0].ProcessID)
	})

	t.Run("empty list without limit", func(t *testing.T) {
		api := newTestAPI(nil)

		rec := api.do(http.MethodGet, "/api/v1/orders/review", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, api.query.reviewLimit)
		assert.JSONEq(t, `[]`, string(decode(t, rec).Data))
	})

	t.Run("rejects invalid limit", func(t *testing.T) {
		api := newTestAPI(nil)

		rec := api.do(http.MethodGet, "/api/v1/orders/review?limit=abc", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, application.ErrCodeInvalidInput, decode(t, rec).Error.Code)
	})
}

func TestGetOrderTransaction(t *testing.T) {
	t.Run("returns gateway body unmodified", func(t *testing.T) {
		api := newTestAPI(nil)
		api.query.env = gateway.NewEnvelope(map[string]any{
			"data": map[string]any{"id": "tran_1", "status": "closed"},
		})

		rec := api.do(http.MethodGet, "/api/v1/orders/order-1/transaction", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"id":"tran_1","status":"closed"}}`, string(decode(t, rec).Data))
	})

	t.Run("order without transaction", func(t *testing.T) {
		api := newTestAPI(nil)
		api.query.err = application.NewInvalidStateError(errors.New("order order-1 has no transaction"))

		rec := api.do(http.MethodGet, "/api/v1/orders/order-1/transaction", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		api := newTestAPI(map[string]handlers.HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})

		rec := api.do(http.MethodGet, "/healthz", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("reports failing dependency", func(t *testing.T) {
		api := newTestAPI(map[string]handlers.HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})

		rec := api.do(http.MethodGet, "/healthz", "")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var data handlers.HealthResponse
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
		assert.Equal(t, "degraded", data.Status)
		assert.Equal(t, "down", data.Checks["redis"])
		assert.Equal(t, "up", data.Checks["postgres"])
	})
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(nil)

	rec := api.do(http.MethodGet, "/api/v1/checkouts", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
