package postgres

import (
	"github.com/k10r/paymill-shopware/internal/domain"
)

func toCustomerRecord(m CustomerModel, methods []PaymentMethodModel) *domain.CustomerRecord {
	record := &domain.CustomerRecord{
		CustomerID:     m.CustomerID,
		ClientID:       deref(m.ClientID),
		PaymentMethods: make(map[domain.PaymentType]string, len(methods)),
		UpdatedAt:      m.UpdatedAt,
	}
	for _, pm := range methods {
		record.PaymentMethods[domain.PaymentType(pm.PaymentType)] = pm.PaymentMethodID
		if pm.UpdatedAt.After(record.UpdatedAt) {
			record.UpdatedAt = pm.UpdatedAt
		}
	}
	return record
}

func toOrderRecord(m OrderModel) *domain.OrderRecord {
	return &domain.OrderRecord{
		OrderID:            m.OrderID,
		CustomerID:         m.CustomerID,
		PaymentType:        domain.PaymentType(m.PaymentType),
		ProcessID:          deref(m.ProcessID),
		TransactionID:      deref(m.TransactionID),
		PreauthorizationID: deref(m.PreauthorizationID),
		Amount:             m.AmountCents,
		Currency:           m.Currency,
		Mode:               m.Mode,
		Cancelled:          m.Cancelled,
		NeedsReview:        m.NeedsReview,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toOrderModel(o *domain.OrderRecord) OrderModel {
	paymentType := o.PaymentType
	if paymentType == "" {
		paymentType = domain.PaymentTypeCreditCard
	}
	return OrderModel{
		OrderID:            o.OrderID,
		CustomerID:         o.CustomerID,
		PaymentType:        string(paymentType),
		ProcessID:          nullable(o.ProcessID),
		TransactionID:      nullable(o.TransactionID),
		PreauthorizationID: nullable(o.PreauthorizationID),
		AmountCents:        o.Amount,
		Currency:           o.Currency,
		Mode:               o.Mode,
		Cancelled:          o.Cancelled,
		NeedsReview:        o.NeedsReview,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
