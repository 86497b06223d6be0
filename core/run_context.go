package core

import (
	"context"
	"fmt"

	"maps"

	"github.com/mindbots/voicemesh/logging"
)

// RunContext carries execution state & helpers for a single reply cycle.
// It encapsulates the mutable, per-reply execution scope passed to the
// inference flow and to tools. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, ReplyID, Agent info)
//   - The user Content that triggered the reply (empty for greetings)
//   - The Emit channel feeding the session event pipeline
//   - Backing services (session, memory) for persistence concerns
//   - A working Session snapshot and pending StateDelta to commit
//
// State mutations performed via SetState accumulate in StateDelta until
// CommitStateDelta or EmitEvent applies them.
type RunContext struct {
	Context            context.Context
	SessionID, ReplyID string
	Agent              AgentInfo
	UserContent        Content
	MaxModelCalls      int
	Emit               chan<- Event
	SessionStore       SessionStore
	MemoryStore        MemoryStore
	Limiter            *ModelLimiter
	Session            *Session
	StateDelta         map[string]any

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty state delta and a
// fresh model-call limiter.
func NewRunContext(
	ctx context.Context,
	sessionID, replyID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	sess *Session,
	sessionStore SessionStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		ReplyID:       replyID,
		Agent:         agent,
		UserContent:   userContent,
		MaxModelCalls: maxModelCalls,
		Emit:          emit,
		Session:       sess,
		SessionStore:  sessionStore,
		MemoryStore:   memoryStore,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// SearchMemory queries the MemoryStore for relevant content.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.SessionID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}
	return rc.MemoryStore.Store(rc.SessionID, content, md)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// CommitStateDelta persists the accumulated StateDelta then clears the buffer.
func (rc *RunContext) CommitStateDelta() error {
	if len(rc.StateDelta) == 0 {
		return nil
	}

	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	if err := rc.SessionStore.ApplyDelta(rc.SessionID, rc.StateDelta); err != nil {
		return err
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// GetSessionHistory returns all historical events for the session.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetEvents()
}

// GetAgentName returns the logical agent name for this reply cycle.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// EmitEvent merges the pending StateDelta into the event and emits it.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			delta := map[string]any{}
			for k, v := range rc.StateDelta {
				delta[k] = v
			}
			ev.Actions.StateDelta = delta
		} else {
			for k, v := range rc.StateDelta {
				ev.Actions.StateDelta[k] = v
			}
		}
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}

	return nil
}
