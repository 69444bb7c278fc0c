package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport matches every *TransportError with errors.Is.
	ErrTransport = errors.New("transport failure")
	// ErrCancelled is returned when the caller's context is done before the
	// result is available. It wraps the context error.
	ErrCancelled = errors.New("cancelled")
	// ErrConnLost is the cause of TransportError returned for websocket
	// requests and subscriptions when the connection is gone.
	ErrConnLost = errors.New("connection lost")
	// ErrRateLimited is the cause of TransportError returned when the
	// request can't be sent within the caller's deadline because of the
	// client-side rate limit.
	ErrRateLimited = errors.New("rate limit exceeds deadline")
	// ErrNoResult is the cause of TransportError for responses that carry
	// neither result nor error.
	ErrNoResult = errors.New("no result returned")
	// ErrNonceAccountNotFound is returned from GetNonce for missing accounts.
	ErrNonceAccountNotFound = errors.New("nonce account not found")
)

// TransportError is a network-level failure (connection refused, timeout,
// malformed envelope, non-success HTTP status, lost websocket). The client
// never retries these by itself.
type TransportError struct {
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %s", e.Cause)
}

// Unwrap returns the cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// HTTPError is the cause of TransportError returned for non-200 HTTP
// responses that have no parsable JSON-RPC body.
type HTTPError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d/%s", e.StatusCode, http.StatusText(e.StatusCode))
}

func transportErr(err error) error {
	return &TransportError{Cause: err}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}
