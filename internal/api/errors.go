package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a transport failure
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindNetwork         Kind = "network"
	KindServer          Kind = "server"
	KindInvalidResponse Kind = "invalid_response"
	KindUnknown         Kind = "unknown"
)

// Error represents a failed call to the generation service
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error returned by a Transport. Deadline expiry is a
// timeout even when the transport did not wrap it, so callers that apply
// their own context.WithTimeout get the same classification.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var urlErr *url.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func classifyRequestError(ctx context.Context, err error) *Error {
	kind := KindNetwork
	if ctx.Err() == context.DeadlineExceeded || KindOf(err) == KindTimeout {
		kind = KindTimeout
	} else if ctx.Err() == context.Canceled {
		kind = KindUnknown
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("request failed: %v", err),
		Err:     err,
	}
}

// limiterWaitError classifies a rate limiter refusal. The limiter refuses
// up front when the queued wait would outlast the deadline, so ctx.Err() may
// still be nil here. No request reached the server.
func limiterWaitError(ctx context.Context, err error) *Error {
	kind := KindTimeout
	if ctx.Err() == context.Canceled {
		kind = KindUnknown
	} else if _, ok := ctx.Deadline(); !ok && ctx.Err() == nil {
		kind = KindUnknown
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("rate limiter wait failed: %v", err),
		Err:     err,
	}
}
