// Package model defines the completion boundary: a provider-neutral Request /
// Response pair, the Model interface and the CompletionError taxonomy.
//
// Concrete providers live in sub-packages (model/openai, model/anthropic).
// ScriptedModel is an in-memory implementation for tests and examples, and
// Retrying decorates any Model with bounded exponential backoff for the
// retryable error kinds.
package model
