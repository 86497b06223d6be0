// Package transcript turns a session's conversation history into durable
// files written at shutdown. It contains the exporters (full history JSON,
// Alpaca style JSONL for fine-tuning datasets), the filename convention and
// the Writer that resolves the output directory and persists the result.
//
// Exporters depend only on the core event model. The Writer persists through
// a small Store interface so tests can capture output in memory while
// production code writes to the local filesystem.
package transcript
