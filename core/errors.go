package core

import (
	"context"
	"errors"
	"fmt"
)

// ConfigErrorKind categorizes construction-time failures.
type ConfigErrorKind string

const (
	ConfigDuplicateName     ConfigErrorKind = "DUPLICATE_NAME"
	ConfigUnknownCapability ConfigErrorKind = "UNKNOWN_CAPABILITY"
	ConfigMalformedSchema   ConfigErrorKind = "MALFORMED_SCHEMA"
	ConfigInvalid           ConfigErrorKind = "INVALID"
)

// ConfigurationError is raised while building agents, registries or pipelines.
// It never occurs during a live turn.
type ConfigurationError struct {
	Kind    ConfigErrorKind
	Subject string // offending name or key
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Subject != "" {
		return fmt.Sprintf("configuration error [%s] %s: %s", e.Kind, e.Subject, msg)
	}
	return fmt.Sprintf("configuration error [%s]: %s", e.Kind, msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is matches any *ConfigurationError of the same kind, so the Err* sentinels
// work with errors.Is.
func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	return ok && t.Kind == e.Kind && t.Subject == "" && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrDuplicateName          = &ConfigurationError{Kind: ConfigDuplicateName}
	ErrMalformedSchema        = &ConfigurationError{Kind: ConfigMalformedSchema}
	ErrUnregisteredCapability = &ConfigurationError{Kind: ConfigUnknownCapability}
	ErrInvalidConfig          = &ConfigurationError{Kind: ConfigInvalid}
)

// OrchestrationKind names the reason an agent call terminated unsuccessfully.
type OrchestrationKind string

const (
	KindCompletion        OrchestrationKind = "COMPLETION"
	KindCapability        OrchestrationKind = "CAPABILITY"
	KindTurnLimitExceeded OrchestrationKind = "TURN_LIMIT_EXCEEDED"
	KindCancelled         OrchestrationKind = "CANCELLED"
	KindTimedOut          OrchestrationKind = "TIMED_OUT"
	KindExtraction        OrchestrationKind = "EXTRACTION"
)

// OrchestrationError is the caller-facing error of an agent call. It wraps
// whichever underlying error terminated the call.
type OrchestrationError struct {
	Kind  OrchestrationKind
	Agent string
	// Turns is the number of completion requests issued before termination.
	Turns int
	// Content holds the last assistant content for TurnLimitExceeded.
	Content string
	Err     error
}

func (e *OrchestrationError) Error() string {
	var msg string
	switch e.Kind {
	case KindTurnLimitExceeded:
		msg = fmt.Sprintf("turn limit exceeded after %d turns", e.Turns)
	case KindCancelled:
		msg = "cancelled"
	case KindTimedOut:
		msg = "timed out"
	default:
		msg = "failed"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Agent != "" {
		return fmt.Sprintf("agent %s [%s]: %s", e.Agent, e.Kind, msg)
	}
	return fmt.Sprintf("orchestration [%s]: %s", e.Kind, msg)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// Is matches sentinels of the same kind.
func (e *OrchestrationError) Is(target error) bool {
	t, ok := target.(*OrchestrationError)
	return ok && t.Kind == e.Kind && t.Agent == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrTurnLimitExceeded = &OrchestrationError{Kind: KindTurnLimitExceeded}
	ErrCancelled         = &OrchestrationError{Kind: KindCancelled}
	ErrTimedOut          = &OrchestrationError{Kind: KindTimedOut}
)

// IsContextError reports whether err stems from context cancellation or a deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ContextKind maps a context error to Cancelled or TimedOut.
func ContextKind(err error) OrchestrationKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	return KindCancelled
}

// NewContextError wraps a context failure observed by agent after turns completions.
func NewContextError(agent string, turns int, err error) *OrchestrationError {
	return &OrchestrationError{Kind: ContextKind(err), Agent: agent, Turns: turns, Err: err}
}
