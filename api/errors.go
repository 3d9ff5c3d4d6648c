package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies API failures.
type Kind int

const (
	// KindUnexpected covers request building and response decoding problems.
	KindUnexpected Kind = iota
	// KindNetwork means no response was received (connection error or timeout).
	KindNetwork
	// KindRejected is a 4xx answer.
	KindRejected
	// KindServer is a 5xx answer or an unexpected success status.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	default:
		return "unexpected"
	}
}

// Error is returned by every Client method.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int
	// Message is the server supplied "message" field, if any.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0 && e.Message != "":
		return fmt.Sprintf("api %s: status %d: %s", e.Endpoint, e.Status, e.Message)
	case e.Status > 0 && e.Err != nil:
		return fmt.Sprintf("api %s: status %d: %s: %v", e.Endpoint, e.Status, e.Kind, e.Err)
	case e.Status > 0:
		return fmt.Sprintf("api %s: status %d", e.Endpoint, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("api %s: %s: %v", e.Endpoint, e.Kind, e.Err)
	default:
		return fmt.Sprintf("api %s: %s", e.Endpoint, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnexpected
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ServerMessage returns the server supplied message carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func IsNotFound(err error) bool     { return StatusOf(err) == http.StatusNotFound }
func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

// IsTimeout reports whether err is a network failure caused by a deadline.
func IsTimeout(err error) bool {
	if KindOf(err) != KindNetwork {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func statusKind(status int) Kind {
	switch {
	case status >= 400 && status < 500:
		return KindRejected
	default:
		return KindServer
	}
}
