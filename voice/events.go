package voice

import (
	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/metrics"
)

// AgentState describes what the agent is currently doing in the room.
type AgentState string

const (
	// StateInitializing is the state before the session loop is running.
	StateInitializing AgentState = "initializing"
	// StateListening means the agent is waiting for user speech.
	StateListening AgentState = "listening"
	// StateThinking means a reply is being generated.
	StateThinking AgentState = "thinking"
	// StateSpeaking means synthesized audio is being published.
	StateSpeaking AgentState = "speaking"
)

// EventType labels session events.
type EventType string

const (
	// EventUserInputTranscribed delivers a user transcript (interim or final).
	EventUserInputTranscribed EventType = "user_input_transcribed"
	// EventConversationItemAdded signals a new persisted conversation event.
	EventConversationItemAdded EventType = "conversation_item_added"
	// EventAgentStateChanged signals a listening/thinking/speaking transition.
	EventAgentStateChanged EventType = "agent_state_changed"
	// EventMetricsCollected delivers one metric record.
	EventMetricsCollected EventType = "metrics_collected"
	// EventClose is the last event; Err carries the shutdown cause if any.
	EventClose EventType = "close"
)

// Transcript is the payload of EventUserInputTranscribed.
type Transcript struct {
	Text     string
	Final    bool
	Language string
}

// Event is one observable session occurrence. Only the fields relevant to
// the Type are populated.
type Event struct {
	Type       EventType
	Transcript Transcript
	Item       *core.Event
	OldState   AgentState
	NewState   AgentState
	Metrics    metrics.AgentMetrics
	Err        error
}
