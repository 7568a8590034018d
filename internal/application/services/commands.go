package services

type CheckoutCommand struct {
	OrderID          string `validate:"required"`
	CustomerID       string `validate:"required"`
	Token            string
	Amount           int64
	AuthorizedAmount *int64
	Currency         string
	CustomerName     string
	CustomerEmail    string
	Description      string
	// PaymentType selects the stored payment method: "cc" (default) or "elv".
	PaymentType string
	// CaptureImmediately charges now; otherwise the amount is only held.
	CaptureImmediately bool
	// NewCard drops a stored payment method so the token is used instead.
	NewCard bool
}

type CheckoutResult struct {
	OrderID            string
	ProcessID          string
	PaymentType        string
	ClientID           string
	PaymentMethodID    string
	TransactionID      string
	PreauthorizationID string
	RefundID           string
	TopUpTransactionID string
	Mode               string
}

type CaptureCommand struct {
	OrderID     string `validate:"required"`
	Description string
}
