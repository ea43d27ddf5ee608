package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// Class is the retry classification of a failure.
type Class int

const (
	// ClassTerminal failures are recorded and never retried.
	ClassTerminal Class = iota
	// ClassTransient failures are retried with backoff.
	ClassTransient
)

// String returns the class name used in logs and metrics labels.
func (c Class) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "terminal"
}

// Classify decides whether a failed indexing job may succeed on retry.
// Unknown errors are terminal so a bug never turns into a retry loop.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}

	if ie, ok := As(err); ok {
		if ie.Retryable {
			return ClassTransient
		}
		return ClassTerminal
	}

	if errors.Is(err, context.Canceled) {
		return ClassTerminal
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassTerminal
}

// FromHTTPStatus maps a provider HTTP status to an IndexError.
// 429 and 5xx are retryable, 401/403 and other 4xx are terminal.
func FromHTTPStatus(status int, body string) *IndexError {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		body = body[:256]
	}
	msg := fmt.Sprintf("provider returned status %d", status)
	if body != "" {
		msg += ": " + body
	}

	var e *IndexError
	switch {
	case status == http.StatusTooManyRequests:
		e = New(ErrCodeRateLimited, msg, nil)
	case status >= 500:
		e = New(ErrCodeProviderUnavailable, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = New(ErrCodeProviderAuth, msg, nil).
			WithSuggestion("Check the embedding provider API key")
	case status >= 400:
		e = New(ErrCodeProviderRejected, msg, nil)
	default:
		e = New(ErrCodeMalformedResponse, msg, nil)
	}
	return e.WithDetail("status", fmt.Sprintf("%d", status))
}
