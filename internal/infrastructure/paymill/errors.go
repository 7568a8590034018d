package paymill

import (
	"errors"
	"fmt"
)

// APIError is a gateway response the transport could not hand on as an
// envelope: a 5xx status or an undecodable body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paymill error (status: %d): %s", e.StatusCode, truncate(e.Body, 256))
}

func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 0
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
