package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Error kinds carried on CallError. HTTP failures use "http_<status>".
const (
	KindConnection = "connection_error"
	KindTimeout    = "timeout"
	KindConfig     = "config_error"
	KindAPI        = "api_error"
)

// CallError is the failure of a single provider call. It carries a
// machine-readable kind plus a human message and crosses the provider
// boundary as data, never as a panic.
type CallError struct {
	Kind    string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPKind builds the error kind for a non-2xx status.
func HTTPKind(status int) string {
	return fmt.Sprintf("http_%d", status)
}

// Classify converts an arbitrary error from a provider call into a CallError.
// Already-classified errors pass through unchanged.
func Classify(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &CallError{Kind: KindConnection, Message: "Could not connect to the provider. Is it running?"}
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &CallError{Kind: KindTimeout, Message: "Request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallError{Kind: KindTimeout, Message: "Request timed out"}
	}
	return &CallError{Kind: KindAPI, Message: err.Error()}
}

// Retryable reports whether a failed call is worth a second attempt.
// Connection refused means the endpoint is categorically unreachable,
// so it fails fast.
func Retryable(e *CallError) bool {
	switch e.Kind {
	case KindConnection, KindConfig:
		return false
	}
	return true
}
