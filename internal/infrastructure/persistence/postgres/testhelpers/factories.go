package testhelpers

import (
	"github.com/google/uuid"
	"github.com/k10r/paymill-shopware/internal/domain"
)

// NewPreauthorizedOrder returns an order awaiting capture.
func NewPreauthorizedOrder(customerID string) *domain.OrderRecord {
	return &domain.OrderRecord{
		OrderID:            "order-" + uuid.New().String(),
		CustomerID:         customerID,
		PreauthorizationID: "preauth_" + uuid.New().String()[:8],
		Amount:             1500,
		Currency:           "EUR",
		Mode:               domain.ModePreauthorize.String(),
	}
}

// NewCapturedOrder returns an order charged directly.
func NewCapturedOrder(customerID string) *domain.OrderRecord {
	return &domain.OrderRecord{
		OrderID:       "order-" + uuid.New().String(),
		CustomerID:    customerID,
		TransactionID: "tran_" + uuid.New().String()[:8],
		Amount:        1000,
		Currency:      "EUR",
		Mode:          domain.ModeDirect.String(),
	}
}
