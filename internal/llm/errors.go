package llm

import (
	"fmt"
	"time"
)

// Kind classifies a request failure.
type Kind string

// Failure kinds. Transport, timeout, rate-limit and server errors are
// transient and retried; the rest terminate the request immediately.
const (
	KindTransport        Kind = "transport_error"
	KindTimeout          Kind = "timeout"
	KindRateLimited      Kind = "rate_limited"
	KindServer           Kind = "server_error"
	KindClient           Kind = "client_error"
	KindProtocol         Kind = "protocol_error"
	KindPoolClosed       Kind = "pool_closed"
	KindRetriesExhausted Kind = "retries_exhausted"
)

// Error is the single terminal failure a request can yield. A request
// returns exactly one Response or exactly one Error, never both.
type Error struct {
	// Kind tags the failure class.
	Kind Kind

	// Status is the HTTP status code when the failure came from a
	// non-2xx response, zero otherwise.
	Status int

	// Attempts is the number of attempts made for the logical request.
	Attempts int

	// RetryAfter is a server-provided backoff hint (from a 429
	// Retry-After header), zero when absent.
	RetryAfter time.Duration

	msg string
	err error
}

func newError(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, msg: msg}
}

func wrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, msg: msg, err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("llm: %s", e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" [%d]", e.Status)
	}
	if e.msg != "" {
		s += ": " + e.msg
	}
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.err }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTimeout, KindRateLimited, KindServer:
		return true
	}
	return false
}
