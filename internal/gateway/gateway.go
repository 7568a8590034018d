// Package gateway defines the capability the orchestrator uses to talk to the
// payment gateway: one ResourceClient per remote resource kind, each returning
// the raw response Envelope unmodified.
package gateway

import (
	"context"
	"net/url"
	"sort"
	"strconv"
)

// ResourceKind identifies a remote gateway resource.
type ResourceKind string

const (
	KindClient           ResourceKind = "Client"
	KindPaymentMethod    ResourceKind = "Payment"
	KindPreauthorization ResourceKind = "Preauthorization"
	KindTransaction      ResourceKind = "Transaction"
	KindRefund           ResourceKind = "Refund"
)

func (k ResourceKind) String() string {
	return string(k)
}

// Request parameter names understood by the gateway.
const (
	ParamEmail            = "email"
	ParamDescription      = "description"
	ParamToken            = "token"
	ParamClient           = "client"
	ParamAmount           = "amount"
	ParamCurrency         = "currency"
	ParamPayment          = "payment"
	ParamPreauthorization = "preauthorization"
	ParamTransactionID    = "transactionId"
	ParamSource           = "source"
)

// Params is a flat key/value request body.
type Params map[string]string

// SetAmount stores an integer minor-unit amount.
func (p Params) SetAmount(amount int64) {
	p[ParamAmount] = strconv.FormatInt(amount, 10)
}

// Amount parses the amount parameter, returning false when absent or malformed.
func (p Params) Amount() (int64, bool) {
	v, ok := p[ParamAmount]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Values converts the params into form values, skipping empty entries.
func (p Params) Values() url.Values {
	values := url.Values{}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if p[k] == "" {
			continue
		}
		values.Set(k, p[k])
	}
	return values
}

// ResourceClient performs exactly one remote create or fetch for its kind.
// It never retries creates and never judges the envelope.
type ResourceClient interface {
	Create(ctx context.Context, params Params) (Envelope, error)
	Fetch(ctx context.Context, id string) (Envelope, error)
}

// Clients bundles one ResourceClient per kind.
type Clients struct {
	Clients           ResourceClient
	PaymentMethods    ResourceClient
	Preauthorizations ResourceClient
	Transactions      ResourceClient
	Refunds           ResourceClient
}

// For returns the client for kind, or nil when the kind is unknown.
func (c Clients) For(kind ResourceKind) ResourceClient {
	switch kind {
	case KindClient:
		return c.Clients
	case KindPaymentMethod:
		return c.PaymentMethods
	case KindPreauthorization:
		return c.Preauthorizations
	case KindTransaction:
		return c.Transactions
	case KindRefund:
		return c.Refunds
	}
	return nil
}
