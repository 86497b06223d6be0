// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside VoiceMesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Surface token usage uniformly so the metrics layer can aggregate it
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Google) implement the Model interface from
// this package so the voice session remains decoupled from vendor SDKs.
package model
