// Package agent defines the voice persona abstraction: a named character
// with a system instruction, an optional greeting instruction and a set of
// callable tools. The package focuses on three concerns:
//
//  1. Persona configuration (Agent, functional options)
//  2. Instruction resolution, static or dynamic (Instruction, Provider)
//  3. Tool registry management and dispatch (RegisterTool, ExecuteTool)
//
// Design principles:
//   - Minimal hidden global state, explicit wiring via the voice session
//   - Observability through clear logging hooks around tool dispatch
//   - Extensibility via the Provider interface for state-aware prompts
//
// The package intentionally keeps persistence, model specifics and audio
// pipeline abstractions in their respective packages to avoid cyclic deps.
package agent
