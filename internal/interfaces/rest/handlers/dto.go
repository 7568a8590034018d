package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/k10r/paymill-shopware/internal/application/services"
	"github.com/k10r/paymill-shopware/internal/domain"
)

const maxBodyBytes = 1 << 20

type CheckoutRequest struct {
	OrderID          string `json:"order_id"`
	CustomerID       string `json:"customer_id"`
	Token            string `json:"token"`
	Amount           int64  `json:"amount"`
	AuthorizedAmount *int64 `json:"authorized_amount,omitempty"`
	Currency         string `json:"currency"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	Description      string `json:"description"`
	// PaymentType is "cc" (default) or "elv".
	PaymentType string `json:"payment_type,omitempty"`
	// CaptureImmediately defaults to true when omitted.
	CaptureImmediately *bool `json:"capture_immediately,omitempty"`
	NewCard            bool  `json:"new_card"`
}

func (r CheckoutRequest) toCommand() services.CheckoutCommand {
	capture := true
	if r.CaptureImmediately != nil {
		capture = *r.CaptureImmediately
	}
	return services.CheckoutCommand{
		OrderID:            r.OrderID,
		CustomerID:         r.CustomerID,
		Token:              r.Token,
		Amount:             r.Amount,
		AuthorizedAmount:   r.AuthorizedAmount,
		Currency:           r.Currency,
		CustomerName:       r.CustomerName,
		CustomerEmail:      r.CustomerEmail,
		Description:        r.Description,
		PaymentType:        r.PaymentType,
		CaptureImmediately: capture,
		NewCard:            r.NewCard,
	}
}

type CheckoutResponse struct {
	OrderID            string `json:"order_id"`
	ProcessID          string `json:"process_id"`
	Mode               string `json:"mode"`
	PaymentType        string `json:"payment_type"`
	ClientID           string `json:"client_id,omitempty"`
	PaymentMethodID    string `json:"payment_method_id,omitempty"`
	TransactionID      string `json:"transaction_id,omitempty"`
	PreauthorizationID string `json:"preauthorization_id,omitempty"`
	RefundID           string `json:"refund_id,omitempty"`
	TopUpTransactionID string `json:"top_up_transaction_id,omitempty"`
}

func toCheckoutResponse(res *services.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		OrderID:            res.OrderID,
		ProcessID:          res.ProcessID,
		Mode:               res.Mode,
		PaymentType:        res.PaymentType,
		ClientID:           res.ClientID,
		PaymentMethodID:    res.PaymentMethodID,
		TransactionID:      res.TransactionID,
		PreauthorizationID: res.PreauthorizationID,
		RefundID:           res.RefundID,
		TopUpTransactionID: res.TopUpTransactionID,
	}
}

type CaptureRequest struct {
	Description string `json:"description"`
}

type OrderResponse struct {
	OrderID            string    `json:"order_id"`
	CustomerID         string    `json:"customer_id"`
	TransactionID      string    `json:"transaction_id,omitempty"`
	PreauthorizationID string    `json:"preauthorization_id,omitempty"`
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	Mode               string    `json:"mode"`
	PaymentType        string    `json:"payment_type"`
	ProcessID          string    `json:"process_id,omitempty"`
	Captured           bool      `json:"captured"`
	Cancelled          bool      `json:"cancelled"`
	NeedsReview        bool      `json:"needs_review"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toOrderResponse(o *domain.OrderRecord) OrderResponse {
	return OrderResponse{
		OrderID:            o.OrderID,
		CustomerID:         o.CustomerID,
		TransactionID:      o.TransactionID,
		PreauthorizationID: o.PreauthorizationID,
		Amount:             o.Amount,
		Currency:           o.Currency,
		Mode:               o.Mode,
		PaymentType:        string(o.PaymentType),
		ProcessID:          o.ProcessID,
		Captured:           o.Captured(),
		Cancelled:          o.Cancelled,
		NeedsReview:        o.NeedsReview,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func toOrderResponses(orders []*domain.OrderRecord) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// decodeJSON rejects unknown fields and trailing data. An empty body decodes
// to the zero value when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}
