package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/k10r/paymill-shopware/internal/domain"
)

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrOrderCancelled),
		errors.Is(err, domain.ErrOrderAlreadyCaptured),
		errors.Is(err, domain.ErrNoPreauthorization):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrGatewayUnreachable):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	// Default to 500
	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	if errors.Is(err, domain.ErrNotFound) {
		return ErrCodeNotFound
	}
	if code := domain.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}
