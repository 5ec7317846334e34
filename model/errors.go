package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes completion failures.
type ErrorKind string

const (
	// RateLimited is retryable by caller policy.
	RateLimited ErrorKind = "RATE_LIMITED"
	// InvalidRequest is fatal.
	InvalidRequest ErrorKind = "INVALID_REQUEST"
	// ProviderUnavailable is retryable.
	ProviderUnavailable ErrorKind = "PROVIDER_UNAVAILABLE"
	// Unauthorized is fatal.
	Unauthorized ErrorKind = "UNAUTHORIZED"
)

// CompletionError is returned by Model implementations for provider failures.
type CompletionError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *CompletionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion error [%s] %s (status %d): %s", e.Kind, e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("completion error [%s] %s: %s", e.Kind, e.Provider, msg)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Is matches the kind sentinels (ErrRateLimited, ...).
func (e *CompletionError) Is(target error) bool {
	t, ok := target.(*CompletionError)
	return ok && t.Kind == e.Kind && t.Provider == "" && t.Err == nil
}

// Retryable reports whether the kind is eligible for retry with backoff.
func (e *CompletionError) Retryable() bool {
	return e.Kind == RateLimited || e.Kind == ProviderUnavailable
}

// Sentinels for errors.Is checks.
var (
	ErrRateLimited         = &CompletionError{Kind: RateLimited}
	ErrInvalidRequest      = &CompletionError{Kind: InvalidRequest}
	ErrProviderUnavailable = &CompletionError{Kind: ProviderUnavailable}
	ErrUnauthorized        = &CompletionError{Kind: Unauthorized}
)

// IsRetryable reports whether err carries a retryable CompletionError.
func IsRetryable(err error) bool {
	var ce *CompletionError
	return errors.As(err, &ce) && ce.Retryable()
}

// KindForStatus maps an HTTP status code to an ErrorKind. Zero (no response)
// is treated as ProviderUnavailable.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return Unauthorized
	case status == http.StatusRequestTimeout, status == 0, status >= 500:
		return ProviderUnavailable
	default:
		return InvalidRequest
	}
}

// NewStatusError builds a CompletionError from a provider status code.
func NewStatusError(provider string, status int, err error) *CompletionError {
	return &CompletionError{
		Kind:       KindForStatus(status),
		Provider:   provider,
		StatusCode: status,
		Err:        err,
	}
}
