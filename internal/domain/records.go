package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("record not found")

// PaymentType separates stored payment methods by kind of payment.
type PaymentType string

const (
	PaymentTypeCreditCard  PaymentType = "cc"
	PaymentTypeDirectDebit PaymentType = "elv"
)

// ParsePaymentType accepts the short tags and the shop payment names.
// An empty value means credit card.
func ParsePaymentType(s string) (PaymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cc", "paymillcc":
		return PaymentTypeCreditCard, nil
	case "elv", "paymilldebit":
		return PaymentTypeDirectDebit, nil
	}
	return "", NewValidationError("paymentType", fmt.Sprintf("unknown payment type %q", s))
}

// CustomerRecord holds the gateway identifiers stored against a shop customer
// so repeat purchases can reuse them. A customer keeps one payment method per
// payment type.
type CustomerRecord struct {
	CustomerID     string
	ClientID       string
	PaymentMethods map[PaymentType]string
	UpdatedAt      time.Time
}

// PaymentMethodID returns the stored payment method for t, or "".
func (c CustomerRecord) PaymentMethodID(t PaymentType) string {
	return c.PaymentMethods[t]
}

// OrderRecord holds the gateway identifiers stored against an order.
type OrderRecord struct {
	OrderID            string
	CustomerID         string
	PaymentType        PaymentType
	ProcessID          string
	TransactionID      string
	PreauthorizationID string
	Amount             int64
	Currency           string
	Mode               string
	Cancelled          bool
	// NeedsReview marks an order whose attempt moved money but did not
	// complete; the gateway state must be checked by hand.
	NeedsReview bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Captured reports whether money has been charged for the order.
func (o *OrderRecord) Captured() bool {
	return o.TransactionID != ""
}

// CanCapture returns nil when a deferred capture is allowed.
func (o *OrderRecord) CanCapture() error {
	switch {
	case o.Cancelled:
		return ErrOrderCancelled
	case o.Captured():
		return ErrOrderAlreadyCaptured
	case o.PreauthorizationID == "":
		return ErrNoPreauthorization
	}
	return nil
}

// Cancel flags an uncaptured order as cancelled.
func (o *OrderRecord) Cancel(now time.Time) error {
	if o.Captured() {
		return ErrOrderAlreadyCaptured
	}
	if o.Cancelled {
		return ErrOrderCancelled
	}
	o.Cancelled = true
	o.UpdatedAt = now
	return nil
}
