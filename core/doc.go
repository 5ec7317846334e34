// Package core provides the foundational domain types shared by agentweave
// packages:
//
//   - Content / Part (role based conversation messages with text, capability
//     calls and capability results)
//   - Document (static or retrieved context items)
//   - ToolContext (scoped execution surface handed to capabilities)
//   - the caller-facing error taxonomy (ConfigurationError, OrchestrationError)
//
// The package keeps implementation concerns (model adapters, the turn loop,
// pipelines) out of scope so that every other package can depend on it
// without cycles.
package core
