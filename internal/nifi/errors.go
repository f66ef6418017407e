package nifi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed remote call.
type ErrorKind string

const (
	// ErrUnavailable means the NiFi endpoint could not be reached or
	// answered with a server-side (5xx) failure.
	ErrUnavailable ErrorKind = "remote-unavailable"
	// ErrTimeout means the per-call deadline elapsed before a response
	// arrived. The request may still have been applied remotely.
	ErrTimeout ErrorKind = "remote-timeout"
	// ErrRejected means NiFi answered with a client-side (4xx) rejection.
	ErrRejected ErrorKind = "remote-rejected"
)

// RemoteError is the error type returned by every Client call that failed at
// the transport or HTTP layer.
type RemoteError struct {
	// Kind classifies the failure for retry policy and user messaging.
	Kind ErrorKind
	// Status is the HTTP status code, 0 when no response arrived.
	Status int
	// Message is the server-provided detail, already credential-redacted.
	Message string
	// Sent records whether the request reached the wire. When false no
	// partial state change can have occurred remotely, so even a mutating
	// call is safe to retry.
	Sent bool
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("nifi: %s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("nifi: %s: %s", e.Kind, e.Message)
}

// AsRemoteError unwraps err to a *RemoteError, when it carries one.
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Retryable reports whether err is transient and worth retrying for
// idempotent calls (unreachable endpoint, 5xx, timeout).
func Retryable(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return re.Kind == ErrUnavailable || re.Kind == ErrTimeout
}

// RetrySafe reports whether err belongs to the narrow idempotent-retry-safe
// class: the request never reached the remote, so retrying a mutating call
// cannot double-apply an effect. Any error raised after the request was
// sent, including timeouts, is unsafe.
func RetrySafe(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return !re.Sent
}
