package metrics

import (
	"sync"
	"time"

	"github.com/mindbots/voicemesh/logging"
)

// UsageSummary aggregates billable service consumption across a session.
// It is the payload logged once at shutdown.
type UsageSummary struct {
	LLMPromptTokens     int           `json:"llm_prompt_tokens"`
	LLMCompletionTokens int           `json:"llm_completion_tokens"`
	TTSCharacters       int           `json:"tts_characters"`
	STTAudioDuration    time.Duration `json:"stt_audio_duration"`
}

// UsageCollector accumulates usage from metric events. Register Collect as a
// handler for metrics events on the session; call GetSummary at shutdown.
// Safe for concurrent use.
type UsageCollector struct {
	mu      sync.Mutex
	summary UsageSummary
}

// NewUsageCollector creates an empty collector.
func NewUsageCollector() *UsageCollector {
	return &UsageCollector{}
}

// Collect folds a metric record into the running summary. Metric types
// without a usage dimension (VAD, EOU) are ignored.
func (c *UsageCollector) Collect(m AgentMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch v := m.(type) {
	case LLMMetrics:
		c.summary.LLMPromptTokens += v.PromptTokens
		c.summary.LLMCompletionTokens += v.CompletionTokens
	case TTSMetrics:
		c.summary.TTSCharacters += v.Characters
	case STTMetrics:
		c.summary.STTAudioDuration += v.AudioDuration
	}
}

// GetSummary returns a copy of the accumulated usage.
func (c *UsageCollector) GetSummary() UsageSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.summary
}

// LogMetrics writes a structured log line for a metric record. Unknown
// metric types are logged with their raw value so nothing is silently lost.
func LogMetrics(logger logging.Logger, m AgentMetrics) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	switch v := m.(type) {
	case LLMMetrics:
		logger.Info("llm metrics",
			"reply_id", v.ReplyID,
			"model", v.Model,
			"prompt_tokens", v.PromptTokens,
			"completion_tokens", v.CompletionTokens,
			"total_tokens", v.TotalTokens,
			"tool_calls", v.ToolCalls,
			"duration", v.Duration,
		)
	case STTMetrics:
		logger.Info("stt metrics",
			"request_id", v.RequestID,
			"provider", v.Provider,
			"audio_duration", v.AudioDuration,
			"duration", v.Duration,
		)
	case TTSMetrics:
		logger.Info("tts metrics",
			"request_id", v.RequestID,
			"voice", v.Voice,
			"characters", v.Characters,
			"audio_duration", v.AudioDuration,
			"duration", v.Duration,
		)
	case VADMetrics:
		logger.Info("vad metrics",
			"inference_count", v.InferenceCount,
			"speech_duration", v.SpeechDuration,
		)
	case EOUMetrics:
		logger.Info("eou metrics",
			"reply_id", v.ReplyID,
			"end_of_utterance_delay", v.EndOfUtteranceDelay,
			"transcription_delay", v.TranscriptionDelay,
		)
	default:
		logger.Info("metrics", "value", m)
	}
}

// LogSummary writes the aggregated usage summary as a single log line.
func LogSummary(logger logging.Logger, s UsageSummary) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	logger.Info("usage summary",
		"llm_prompt_tokens", s.LLMPromptTokens,
		"llm_completion_tokens", s.LLMCompletionTokens,
		"tts_characters", s.TTSCharacters,
		"stt_audio_duration", s.STTAudioDuration,
	)
}
