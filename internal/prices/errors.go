// Package prices fetches and caches daily price bars for a signal run.
package prices

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrCacheFrozen is returned when writing to a cache after Freeze
var ErrCacheFrozen = errors.New("price cache is frozen")

// Retryable is implemented by provider errors that may succeed on retry
type Retryable interface {
	Retryable() bool
}

// RetryAfter is implemented by errors that carry a server-requested delay
type RetryAfter interface {
	RetryDelay() time.Duration
}

// StatusError represents a non-200 response from a price endpoint
type StatusError struct {
	Provider   string
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s price error: %s (status: %d, endpoint: %s)", e.Provider, e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the status is transient
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// retryDelay extracts a server-requested delay, if any
func retryDelay(err error) time.Duration {
	var ra RetryAfter
	if errors.As(err, &ra) {
		return ra.RetryDelay()
	}
	return 0
}
