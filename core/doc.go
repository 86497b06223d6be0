// Package core provides the foundational domain types and execution contexts
// used by VoiceMesh. It defines the core abstractions for:
//
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable conversation + side-effect records)
//   - RunContext / ToolContext (scoped reply execution & tool sandboxing)
//   - Pluggable stores for session state and memory recall/search
//
// The package intentionally keeps implementation concerns (persistence, voice
// pipeline orchestration, concrete providers) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
