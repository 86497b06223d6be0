package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseEvent is one server-sent event in a scripted Messages API stream.
type sseEvent struct {
	name string
	data string
}

// sseServer serves a scripted event stream for a single streaming request.
func sseServer(t *testing.T, events []sseEvent) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
}

func newTestModel(ts *httptest.Server) *Model {
	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(ts.URL),
	)
	return NewModelFromClient(&client)
}

// drainGenerate collects every response and the first error from one
// Generate exchange, the way the reply flow consumes the channels.
func drainGenerate(t *testing.T, m *Model, req model.Request) ([]model.Response, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	respCh, errCh := m.Generate(ctx, req)

	var responses []model.Response
	var genErr error
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			responses = append(responses, resp)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if genErr == nil {
				genErr = err
			}
		case <-ctx.Done():
			t.Fatal("timed out draining generate channels")
		}
	}
	return responses, genErr
}

func TestGenerateStreamingText(t *testing.T) {
	ts := sseServer(t, []sseEvent{
		{"message_start", `{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Sunny"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" and warm!"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":9}}`},
		{"message_stop", `{"type":"message_stop"}`},
	})
	defer ts.Close()

	m := newTestModel(ts)

	// The exact request shape the reply cycle builds for every model call.
	responses, err := drainGenerate(t, m, model.Request{
		Instructions: "You are MindBot.",
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "what's the weather like?"}}},
		},
		Stream: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, responses)

	var partials int
	for _, resp := range responses[:len(responses)-1] {
		require.True(t, resp.Partial)
		partials++
	}
	assert.GreaterOrEqual(t, partials, 2, "expected text deltas before the final response")

	final := responses[len(responses)-1]
	require.False(t, final.Partial)
	assert.Equal(t, "Sunny and warm!", textOf(final.Content))
	assert.Equal(t, "end_turn", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 12, final.Usage.PromptTokens)
	assert.Equal(t, 9, final.Usage.CompletionTokens)
}

func TestGenerateStreamingToolUse(t *testing.T) {
	ts := sseServer(t, []sseEvent{
		{"message_start", `{"type":"message_start","message":{"id":"msg_02","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":30,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_01","name":"lookup_weather","input":{}}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"location\":"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"Austin\"}"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":15}}`},
		{"message_stop", `{"type":"message_stop"}`},
	})
	defer ts.Close()

	m := newTestModel(ts)

	responses, err := drainGenerate(t, m, model.Request{
		Instructions: "You are MindBot.",
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "weather in Austin?"}}},
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "lookup_weather",
				Description: "Look up the weather",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"location": map[string]any{"type": "string"}},
					"required":   []string{"location"},
				},
			},
		}},
		Stream: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, responses)

	final := responses[len(responses)-1]
	require.False(t, final.Partial)
	assert.Equal(t, "tool_use", final.FinishReason)

	var calls []core.FunctionCall
	for _, p := range final.Content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_01", calls[0].ID)
	assert.Equal(t, "lookup_weather", calls[0].Name)
	assert.JSONEq(t, `{"location":"Austin"}`, calls[0].Arguments)
}

func TestConversationMessagesToolResultTurn(t *testing.T) {
	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "weather in Austin?"}}},
		{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        "toolu_01",
				Name:      "lookup_weather",
				Arguments: `{"location":"Austin"}`,
			}},
		}},
		{Role: "tool", Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID:       "toolu_01",
				Name:     "lookup_weather",
				Response: `{"weather":"sunny"}`,
			}},
		}},
	}

	messages := conversationMessages(contents)
	require.Len(t, messages, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)

	// The tool result must answer the tool_use from its own user turn.
	require.Equal(t, anthropic.MessageParamRoleUser, messages[2].Role)
	require.Len(t, messages[2].Content, 1)
	result := messages[2].Content[0].OfToolResult
	require.NotNil(t, result)
	assert.Equal(t, "toolu_01", result.ToolUseID)
}

func textOf(c core.Content) string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
