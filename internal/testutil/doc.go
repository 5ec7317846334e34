// Package testutil contains helpers used across tests: a logger that records
// entries for assertions and a fluent builder for conversation histories.
// They are not intended for production usage.
package testutil
