package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError marks a failure worth retrying, typically a throttled or
// flaking provider call. StatusCode carries the HTTP status when one exists,
// zero otherwise.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError tags err as retryable. Pass statusCode 0 for non-HTTP
// failures.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// retryableErrnos are socket-level failures that show up when the provider
// drops or refuses a connection mid-flight.
var retryableErrnos = []syscall.Errno{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
}

// retryableFragments catch failures that reach us only as wrapped message
// text, after net/http has flattened the original error.
var retryableFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// IsTransient reports whether err looks like a passing fault: an explicit
// TransientError anywhere in the chain, a network timeout, or a known
// connection-level failure. Auth and validation errors stay permanent so a
// bad keyword or credential fails fast instead of burning task quota.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range retryableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status from the provider
// warrants another attempt: throttling, request timeouts, and server-side
// errors. Anything in the 4xx family besides 408/429 means the request itself
// is wrong and repeating it can't help.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
