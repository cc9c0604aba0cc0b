package lbclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the leaderboard server.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Message    string `json:"error"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("lbclient: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("lbclient: HTTP %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// IsRetryable reports whether the server may succeed on a later attempt.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether the server rejected the submit token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
