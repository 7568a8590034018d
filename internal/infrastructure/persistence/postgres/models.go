package postgres

import (
	"time"
)

// CustomerModel is a row of shop customers and their gateway client id.
// Ids stay NULL until the gateway issued them.
type CustomerModel struct {
	CustomerID string
	ClientID   *string
	UpdatedAt  time.Time
}

// PaymentMethodModel is the stored payment method of one customer and
// payment type.
type PaymentMethodModel struct {
	CustomerID      string
	PaymentType     string
	PaymentMethodID string
	UpdatedAt       time.Time
}

type OrderModel struct {
	OrderID            string
	CustomerID         string
	PaymentType        string
	ProcessID          *string
	TransactionID      *string
	PreauthorizationID *string
	AmountCents        int64
	Currency           string
	Mode               string
	Cancelled          bool
	NeedsReview        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
