package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindTimeout       Kind = "timeout"
	KindNetwork       Kind = "network"
	KindServer        Kind = "server"
	KindClient        Kind = "client"
	KindEmptyResponse Kind = "empty_response"
)

// Error is returned by every Client operation that fails.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindServer && e.StatusCode != 0:
		return fmt.Sprintf("%s: server error (%d): %s", e.Op, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// classifyTransportError maps an error from http.Client.Do to a typed Error.
func classifyTransportError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindClient, Op: op, Message: "request cancelled", Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return &Error{Kind: KindNetwork, Op: op, Message: "backend unreachable", Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: KindClient, Op: op, Err: urlErr.Err}
	}

	return &Error{Kind: KindClient, Op: op, Err: err}
}
