package featured

import (
	"fmt"

	"github.com/lamim/salonforge/internal/api"
)

// ErrorKind is the failure taxonomy surfaced to the presenter
type ErrorKind string

const (
	ErrTimedOut             ErrorKind = "timed_out"
	ErrNetworkUnavailable   ErrorKind = "network_unavailable"
	ErrServerDegraded       ErrorKind = "server_degraded"
	ErrInvalidResponseShape ErrorKind = "invalid_response_shape"
	ErrLogicalFailure       ErrorKind = "logical_failure"
)

// LoadError is a classified keyword load failure
type LoadError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("featured keywords %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("featured keywords %s: %s", e.Kind, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry affordance should be offered.
// Server errors are not expected to clear on an immediate retry.
func (e *LoadError) Retryable() bool {
	return e.Kind != ErrServerDegraded
}

func classifyTransportError(err error) *LoadError {
	switch api.KindOf(err) {
	case api.KindTimeout:
		return &LoadError{Kind: ErrTimedOut, Message: "the request timed out", Err: err}
	case api.KindServer:
		return &LoadError{Kind: ErrServerDegraded, Message: "the server could not provide featured keywords", Err: err}
	case api.KindInvalidResponse:
		return &LoadError{Kind: ErrInvalidResponseShape, Message: "the server sent an unexpected response", Err: err}
	default:
		return &LoadError{Kind: ErrNetworkUnavailable, Message: "the server could not be reached", Err: err}
	}
}
