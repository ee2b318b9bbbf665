package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// HTTPError carries the upstream status so the transient classifier can
// decide whether a retry is worthwhile.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

var transientFragments = []string{
	"rate limit",
	"rate_limit",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"connection reset",
	"overloaded",
}

// IsRetryableError classifies transient failures: retryable HTTP statuses,
// network timeouts, context deadlines, and well-known transient message
// fragments from upstream providers.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return IsRetryableHTTPStatus(he.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
