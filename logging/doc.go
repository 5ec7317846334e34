// Package logging provides the minimal logging interface used across agentweave.
//
// The Logger interface defines the standard leveled methods (Debug, Info, Warn, Error)
// taking a message plus alternating key/value pairs. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelDebug, Format: "text"})
//	a, err := agent.New("helper", m, func(o *agent.Options) { o.Logger = logger })
//
// Messages are dotted event names ("agent.turn.start", "tool.call.error") so that
// log pipelines can filter on them without parsing free text.
package logging
