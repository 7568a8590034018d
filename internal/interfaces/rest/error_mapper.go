package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/k10r/paymill-shopware/internal/application"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	ResponseCode int    `json:"response_code,omitempty"`
	Details      string `json:"details,omitempty"`
}

// WriteJSON writes data in the success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true, Data: data})
}

// WriteError maps application errors to HTTP responses. Internal causes are
// logged, not returned to the caller.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode := application.ToHTTPStatus(err)
	errorCode := application.ToErrorCode(err)

	detail := ErrorDetail{
		Code:    errorCode,
		Message: err.Error(),
	}
	if svcErr, ok := application.IsServiceError(err); ok {
		detail.Message = svcErr.Message
		detail.ResponseCode = svcErr.ResponseCode
		if svcErr.Err != nil && statusCode < http.StatusInternalServerError {
			detail.Details = svcErr.Err.Error()
		}
	} else if statusCode >= http.StatusInternalServerError {
		detail.Message = "An internal error occurred"
	}

	if statusCode >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "code", errorCode, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error:   detail,
	})
}
