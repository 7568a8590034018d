package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/k10r/paymill-shopware/internal/domain"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	// ResponseCode is the gateway response code when the gateway rejected the payment.
	ResponseCode int
	Err          error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeDuplicateAttempt = "DUPLICATE_ATTEMPT"
	ErrCodeOrderBusy        = "ORDER_BUSY"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInvalidState     = "INVALID_STATE"
)

func NewDuplicateAttemptError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeDuplicateAttempt,
		Message:    "A checkout with this payment token is already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewOrderBusyError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeOrderBusy,
		Message:    "Another operation on this order is in progress",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Order not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewTimeoutError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTimeout,
		Message:    "Request timed out waiting for completion",
		HTTPStatus: http.StatusRequestTimeout,
		Err:        err,
	}
}

// NewStoreError wraps a storage failure, reporting an expired or cancelled
// request context as a timeout.
func NewStoreError(err error) *ServiceError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTimeoutError(err)
	}
	return NewInternalError(err)
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "Invalid state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

// NewPaymentFailedError reports a failed orchestration with its error code.
func NewPaymentFailedError(code string, responseCode int) *ServiceError {
	status := http.StatusPaymentRequired
	message := "Payment was declined by the gateway"

	switch code {
	case domain.ErrCodeValidationFailed:
		status = http.StatusBadRequest
		message = "Payment parameters are invalid"
	case domain.ErrCodeGatewayUnreachable:
		status = http.StatusBadGateway
		message = "Payment gateway is unreachable"
	case domain.ErrCodeIdentifierAlreadySet, domain.ErrCodeMissingRequiredField:
		status = http.StatusInternalServerError
		message = "Payment processing failed"
	}

	return &ServiceError{
		Code:         code,
		Message:      message,
		HTTPStatus:   status,
		ResponseCode: responseCode,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
