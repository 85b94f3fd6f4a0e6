// Package llm is the boundary to the language model: prompt construction, tolerant
// parsing of replies and the Caller capability the extraction unit depends on.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Caller sends one prompt to a model and returns its raw text reply.
type Caller interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, prompt string) (string, error)

func (f CallerFunc) Call(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrNoJSONObject is returned when a reply contains no well-formed JSON object.
var ErrNoJSONObject = errors.New("no JSON object in model response")

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrorRateLimit ErrorKind = "rate_limit"
	ErrorAuth      ErrorKind = "auth"
	ErrorTimeout   ErrorKind = "timeout"
	ErrorTransport ErrorKind = "transport"
	ErrorProvider  ErrorKind = "provider"
	ErrorEmpty     ErrorKind = "empty_response"
)

// ProviderError is a failed model call.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the call may succeed.
func (e *ProviderError) Temporary() bool {
	switch e.Kind {
	case ErrorRateLimit, ErrorTimeout, ErrorTransport:
		return true
	case ErrorProvider:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// IsTemporary reports whether err wraps a retryable ProviderError.
func IsTemporary(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Temporary()
}
