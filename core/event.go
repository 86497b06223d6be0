package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side effects attached to an Event. Fields are optional
// pointers / maps so absence can be distinguished from zero values. The voice
// session interprets these after persisting the event.
type EventActions struct {
	StateDelta     map[string]any `json:"state_delta,omitempty"`
	EndSession     *bool          `json:"end_session,omitempty"`
	InterruptReply *bool          `json:"interrupt_reply,omitempty"`
}

// Event is the unit of conversation history. Every user utterance, assistant
// reply, tool call and tool result becomes one event. After emission it
// should be treated as immutable. It captures:
//   - Correlation (ReplyID, ID, Author)
//   - Conversational content (role-based Parts)
//   - Side effects requested by tools (Actions)
//   - Error / interruption metadata
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events. Timestamp uses a
// native time.Time (UTC). Use UnixSeconds if numeric forms are needed for
// metrics or export paths.
type Event struct {
	ID             string            `json:"id"`
	ReplyID        string            `json:"reply_id"`
	Author         string            `json:"author"`
	Actions        EventActions      `json:"actions"`
	Timestamp      time.Time         `json:"timestamp"`
	Content        *Content          `json:"content,omitempty"`
	Partial        *bool             `json:"partial,omitempty"`
	Interrupted    *bool             `json:"interrupted,omitempty"`
	ErrorCode      *string           `json:"error_code,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a reply cycle.
// Prefer the helper constructors for common semantic categories.
func NewEvent(replyID, author string) Event {
	return Event{
		ID:        NewID(),
		ReplyID:   replyID,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Actions:   EventActions{},
	}
}

// NewAgentMessageEvent creates an assistant message event with a single text
// part. Author is the agent name.
func NewAgentMessageEvent(replyID, author, message string) Event {
	e := NewEvent(replyID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserTranscriptEvent creates a user-authored text event holding a final
// speech transcript.
func NewUserTranscriptEvent(replyID, transcript string) Event {
	e := NewEvent(replyID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: transcript}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
// Useful when the content is not a plain transcript.
func NewUserContentEvent(replyID string, content *Content) Event {
	e := NewEvent(replyID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent represents the agent requesting execution of a named
// function/tool during a reply cycle.
func NewFunctionCallEvent(replyID, author, functionName, args string) Event {
	e := NewEvent(replyID, author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{
				FunctionCall: FunctionCall{
					Name:      functionName,
					Arguments: args,
				},
			},
		},
	}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// previously emitted function call. If err is non-nil its message is copied
// into the response Error field.
func NewFunctionResponseEvent(replyID, author, id, functionName string, result interface{}, err error) Event {
	e := NewEvent(replyID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewID generates a new unique identifier usable for events, replies and
// jobs. Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming / incomplete
// fragment that will be followed by additional events composing the final
// assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsInterrupted reports whether the turn this event belongs to was cut short
// by the user speaking over the agent.
func (e Event) IsInterrupted() bool { return e.Interrupted != nil && *e.Interrupted }

// Text concatenates all text parts of the event content. Returns "" for
// events without textual content (function calls, control events).
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	var out string
	for _, p := range e.Content.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse implements the heuristic used by the voice session to
// decide when an assistant turn is complete (no pending tool calls/responses
// and not a streaming fragment).
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
