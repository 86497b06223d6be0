// Package metrics defines the per-component measurement records emitted by a
// voice session and the UsageCollector that aggregates them into a billing
// style summary. Metrics are emitted as session events; they are logged but
// never persisted with the conversation history.
package metrics

import "time"

// AgentMetrics is the closed set of metric records a session can emit.
// Concrete metric types implement the unexported isMetrics marker.
type AgentMetrics interface{ isMetrics() }

// LLMMetrics records a single model call during a reply cycle.
type LLMMetrics struct {
	ReplyID          string        `json:"reply_id"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	ToolCalls        int           `json:"tool_calls"`
	Duration         time.Duration `json:"duration"`
	Timestamp        time.Time     `json:"timestamp"`
}

func (LLMMetrics) isMetrics() {}

// STTMetrics records a single speech recognition request.
type STTMetrics struct {
	RequestID     string        `json:"request_id"`
	Provider      string        `json:"provider"`
	AudioDuration time.Duration `json:"audio_duration"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
}

func (STTMetrics) isMetrics() {}

// TTSMetrics records a single speech synthesis request.
type TTSMetrics struct {
	RequestID     string        `json:"request_id"`
	Voice         string        `json:"voice"`
	Characters    int           `json:"characters"`
	AudioDuration time.Duration `json:"audio_duration"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
}

func (TTSMetrics) isMetrics() {}

// VADMetrics records accumulated voice activity detection work.
type VADMetrics struct {
	InferenceCount int           `json:"inference_count"`
	SpeechDuration time.Duration `json:"speech_duration"`
	Timestamp      time.Time     `json:"timestamp"`
}

func (VADMetrics) isMetrics() {}

// EOUMetrics records end-of-utterance detection latency for one user turn.
type EOUMetrics struct {
	ReplyID             string        `json:"reply_id"`
	EndOfUtteranceDelay time.Duration `json:"end_of_utterance_delay"`
	TranscriptionDelay  time.Duration `json:"transcription_delay"`
	Timestamp           time.Time     `json:"timestamp"`
}

func (EOUMetrics) isMetrics() {}
