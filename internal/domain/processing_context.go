// Package domain holds the per-attempt payment state and the failure taxonomy
// shared by the orchestrator and the services around it.
package domain

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Params is the caller-supplied input of one payment attempt.
type Params struct {
	Token            string `validate:"required"`
	BasketAmount     int64  `validate:"min=0"`
	AuthorizedAmount *int64 `validate:"omitempty,min=0"`
	Currency         string `validate:"required"`
	CustomerName     string `validate:"required"`
	CustomerEmail    string `validate:"required"`
	Description      string `validate:"required"`
	Source           string

	// ProcessID identifies the attempt in diagnostic logs. Generated when empty.
	ProcessID string

	// Previously stored gateway identifiers for the fast checkout path.
	ClientID        string
	PaymentMethodID string
}

// CaptureParams is the input of a deferred capture against a stored
// preauthorization.
type CaptureParams struct {
	PreauthorizationID string `validate:"required"`
	Amount             int64  `validate:"min=0"`
	Currency           string `validate:"required"`
	Description        string
	Source             string
	ClientID           string
	PaymentMethodID    string
	ProcessID          string
}

// ProcessingContext is the state of a single processing attempt. It is owned
// by one caller, mutated only through its Set/Record methods and never reused.
type ProcessingContext struct {
	params    Params
	processID string

	clientID           string
	paymentMethodID    string
	transactionID      string
	preauthorizationID string
	refundID           string
	topUpTransactionID string

	lastResult   json.RawMessage
	errorCode    string
	responseCode int
}

func NewProcessingContext(p Params) *ProcessingContext {
	if p.AuthorizedAmount != nil {
		amount := *p.AuthorizedAmount
		p.AuthorizedAmount = &amount
	}
	return &ProcessingContext{
		params:          p,
		processID:       processIDOrNew(p.ProcessID),
		clientID:        p.ClientID,
		paymentMethodID: p.PaymentMethodID,
	}
}

// NewCaptureContext builds the context used to capture an existing
// preauthorization. This is the only path where the caller supplies the
// preauthorization id.
func NewCaptureContext(p CaptureParams) *ProcessingContext {
	return &ProcessingContext{
		params: Params{
			BasketAmount: p.Amount,
			Currency:     p.Currency,
			Description:  p.Description,
			Source:       p.Source,
		},
		processID:          processIDOrNew(p.ProcessID),
		clientID:           p.ClientID,
		paymentMethodID:    p.PaymentMethodID,
		preauthorizationID: p.PreauthorizationID,
	}
}

// Input returns a copy of the caller-supplied fields.
func (pc *ProcessingContext) Input() Params {
	p := pc.params
	p.ClientID = pc.clientID
	p.PaymentMethodID = pc.paymentMethodID
	p.ProcessID = pc.processID
	return p
}

func (pc *ProcessingContext) Token() string         { return pc.params.Token }
func (pc *ProcessingContext) BasketAmount() int64   { return pc.params.BasketAmount }
func (pc *ProcessingContext) Currency() string      { return pc.params.Currency }
func (pc *ProcessingContext) CustomerName() string  { return pc.params.CustomerName }
func (pc *ProcessingContext) CustomerEmail() string { return pc.params.CustomerEmail }
func (pc *ProcessingContext) Description() string   { return pc.params.Description }
func (pc *ProcessingContext) Source() string        { return pc.params.Source }

// AuthorizedAmount returns the previously authorized amount, if any.
func (pc *ProcessingContext) AuthorizedAmount() (int64, bool) {
	if pc.params.AuthorizedAmount == nil {
		return 0, false
	}
	return *pc.params.AuthorizedAmount, true
}

// HoldAmount is the amount a preauthorization should reserve.
func (pc *ProcessingContext) HoldAmount() int64 {
	if amount, ok := pc.AuthorizedAmount(); ok {
		return amount
	}
	return pc.params.BasketAmount
}

func (pc *ProcessingContext) ProcessID() string          { return pc.processID }
func (pc *ProcessingContext) ClientID() string           { return pc.clientID }
func (pc *ProcessingContext) PaymentMethodID() string    { return pc.paymentMethodID }
func (pc *ProcessingContext) TransactionID() string      { return pc.transactionID }
func (pc *ProcessingContext) PreauthorizationID() string { return pc.preauthorizationID }
func (pc *ProcessingContext) RefundID() string           { return pc.refundID }
func (pc *ProcessingContext) TopUpTransactionID() string { return pc.topUpTransactionID }
func (pc *ProcessingContext) ErrorCode() string          { return pc.errorCode }
func (pc *ProcessingContext) ResponseCode() int          { return pc.responseCode }

// LastResult returns the last raw gateway response recorded.
func (pc *ProcessingContext) LastResult() json.RawMessage {
	return pc.lastResult
}

func (pc *ProcessingContext) SetClientID(id string) error {
	return setOnce(&pc.clientID, "clientId", id)
}

func (pc *ProcessingContext) SetPaymentMethodID(id string) error {
	return setOnce(&pc.paymentMethodID, "paymentMethodId", id)
}

func (pc *ProcessingContext) SetTransactionID(id string) error {
	return setOnce(&pc.transactionID, "transactionId", id)
}

func (pc *ProcessingContext) SetPreauthorizationID(id string) error {
	return setOnce(&pc.preauthorizationID, "preauthorizationId", id)
}

func (pc *ProcessingContext) SetRefundID(id string) error {
	return setOnce(&pc.refundID, "refundId", id)
}

func (pc *ProcessingContext) SetTopUpTransactionID(id string) error {
	return setOnce(&pc.topUpTransactionID, "topUpTransactionId", id)
}

// RecordResult keeps the raw envelope of the latest gateway call.
func (pc *ProcessingContext) RecordResult(raw json.RawMessage) {
	pc.lastResult = append(json.RawMessage(nil), raw...)
}

// Fail records the code carried by err. Errors outside the taxonomy are
// recorded as UNKNOWN_ERROR.
func (pc *ProcessingContext) Fail(err error) {
	if err == nil {
		return
	}
	code := CodeOf(err)
	if code == "" {
		code = ErrCodeUnknownError
	}
	pc.errorCode = code

	var responseCode int
	if de := asDomainError(err); de != nil {
		responseCode = de.ResponseCode
	}
	pc.responseCode = responseCode
}

// Failed reports whether an error code has been recorded.
func (pc *ProcessingContext) Failed() bool {
	return pc.errorCode != ""
}

// IssuedIdentifier names the first money-moving identifier already set, or
// returns "" when the context has not charged anything yet.
func (pc *ProcessingContext) IssuedIdentifier() string {
	switch {
	case pc.transactionID != "":
		return "transactionId"
	case pc.preauthorizationID != "":
		return "preauthorizationId"
	case pc.refundID != "":
		return "refundId"
	case pc.topUpTransactionID != "":
		return "topUpTransactionId"
	}
	return ""
}

// MaskToken keeps the last four characters of a payment token.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func setOnce(dst *string, name, id string) error {
	if id == "" {
		return NewMissingRequiredFieldError(name)
	}
	if *dst != "" {
		return NewIdentifierAlreadySetError(name)
	}
	*dst = id
	return nil
}

func processIDOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
