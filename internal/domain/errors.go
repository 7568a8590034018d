package domain

import (
	"errors"
	"fmt"
)

// DomainError represents an orchestration failure with a stable code
type DomainError struct {
	Code    string
	Message string
	// Field names the offending input for VALIDATION_FAILED.
	Field string
	// ResponseCode carries the gateway response code for INVALID_RESPONSE_CODE.
	ResponseCode int
	Err          error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code so sentinels work with errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Gateway success response code.
const SuccessResponseCode = 20000

const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeGatewayUnreachable   = "GATEWAY_UNREACHABLE"
	ErrCodeInvalidResponseCode  = "INVALID_RESPONSE_CODE"
	ErrCodeInvalidID            = "INVALID_ID"
	ErrCodeInvalidOrderState    = "INVALID_ORDER_STATE"
	ErrCodeUnknownError         = "UNKNOWN_ERROR"
	ErrCodeNotIssued            = "NOT_ISSUED"
	ErrCodeIdentifierAlreadySet = "IDENTIFIER_ALREADY_SET"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"

	// Order state
	ErrCodeOrderCancelled       = "ORDER_CANCELLED"
	ErrCodeOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
	ErrCodeNoPreauthorization   = "NO_PREAUTHORIZATION"
)

var (
	ErrValidationFailed     = &DomainError{Code: ErrCodeValidationFailed, Message: "validation failed"}
	ErrGatewayUnreachable   = &DomainError{Code: ErrCodeGatewayUnreachable, Message: "gateway unreachable"}
	ErrInvalidResponseCode  = &DomainError{Code: ErrCodeInvalidResponseCode, Message: "invalid result: invalid response code"}
	ErrInvalidID            = &DomainError{Code: ErrCodeInvalidID, Message: "invalid result: invalid id"}
	ErrInvalidOrderState    = &DomainError{Code: ErrCodeInvalidOrderState, Message: "invalid result: invalid order state"}
	ErrUnknownError         = &DomainError{Code: ErrCodeUnknownError, Message: "invalid result: unknown error"}
	ErrNotIssued            = &DomainError{Code: ErrCodeNotIssued, Message: "invalid result: could not be issued"}
	ErrIdentifierAlreadySet = &DomainError{Code: ErrCodeIdentifierAlreadySet, Message: "identifier already set"}
	ErrMissingRequiredField = &DomainError{Code: ErrCodeMissingRequiredField, Message: "missing required field"}

	ErrOrderCancelled       = &DomainError{Code: ErrCodeOrderCancelled, Message: "order is cancelled"}
	ErrOrderAlreadyCaptured = &DomainError{Code: ErrCodeOrderAlreadyCaptured, Message: "order is already captured"}
	ErrNoPreauthorization   = &DomainError{Code: ErrCodeNoPreauthorization, Message: "order has no preauthorization"}
)

func NewValidationError(field, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf("parameter %s %s", field, reason),
		Field:   field,
	}
}

func NewGatewayUnreachableError(kind string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGatewayUnreachable,
		Message: fmt.Sprintf("gateway unreachable while calling %s", kind),
		Err:     err,
	}
}

func NewInvalidResponseCodeError(kind string, code int) *DomainError {
	return &DomainError{
		Code:         ErrCodeInvalidResponseCode,
		Message:      fmt.Sprintf("invalid result for %s: response code %d", kind, code),
		ResponseCode: code,
	}
}

func NewInvalidIDError(kind string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidID,
		Message: fmt.Sprintf("invalid result: no %s created", kind),
	}
}

func NewInvalidOrderStateError(kind string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidOrderState,
		Message: fmt.Sprintf("invalid result: %s status is open", kind),
	}
}

func NewUnknownError(kind, status string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownError,
		Message: fmt.Sprintf("invalid result: %s has unknown status %q", kind, status),
	}
}

func NewNotIssuedError(kind string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotIssued,
		Message: fmt.Sprintf("invalid result: %s could not be issued", kind),
	}
}

func NewIdentifierAlreadySetError(name string) *DomainError {
	return &DomainError{
		Code:    ErrCodeIdentifierAlreadySet,
		Message: fmt.Sprintf("%s is already set", name),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// CodeOf returns the DomainError code of err, or "" when err carries none.
func CodeOf(err error) string {
	if domainErr := asDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ""
}

func asDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}
