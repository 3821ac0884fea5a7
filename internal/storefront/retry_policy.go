package storefront

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// IsRetryable reports whether a later run may succeed with the same request.
// The engine never retries within a transition; this only drives logging and redelivery.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return isRetryableAPIError(err) || isRetryableNetworkError(err) || isRetryableSystemError(err)
}

func isRetryableAPIError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	// 5xx: storefront down, 429: throttled
	return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
}

func isRetryableNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableSystemError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
