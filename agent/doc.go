// Package agent provides the caller-facing Agent: a named, immutable bundle
// of a completion model, preamble, context sources and capabilities driven by
// the flow engine. The package focuses on three concerns:
//
//  1. Construction and validation (New, Options)
//  2. Calling conventions (Prompt, PromptMultiTurn, Chat, Run)
//  3. Adapters that let an agent act as a capability (Tool) or produce typed
//     structured output (Extractor)
//
// Execution Model:
//   - Every call owns its own flow.Turn; an Agent holds no per-call state and
//     may be shared across goroutines
//   - The turn limit of a call bounds the number of completion requests
//   - Cancellation and per-call timeouts surface as core.ErrCancelled and
//     core.ErrTimedOut
package agent
