package tool

import (
	"fmt"
	"strings"

	"github.com/mindbots/voicemesh/core"
)

// MemoryTool lets a voice persona remember and recall facts across turns.
//
// It exposes the ToolContext state and memory surfaces as model callable
// operations so an agent can persist user preferences mid-conversation
// ("remember that I'm vegetarian") and retrieve them later. It also allows
// the model to end the session when the user says goodbye.
type MemoryTool struct {
	name        string
	description string
}

// NewMemoryTool creates the built-in memory management tool.
//
// Operations:
//   - get_state / set_state for per-session key value state
//   - remember / recall for long-term memory
//   - get_history for a summary of the conversation so far
//   - end_session to close the conversation gracefully
func NewMemoryTool() *MemoryTool {
	return &MemoryTool{
		name: "memory",
		description: "Manages conversation memory and session state. " +
			"Supports operations: get_state, set_state, remember, recall, " +
			"get_history, end_session.",
	}
}

// Name returns the tool identifier.
func (t *MemoryTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *MemoryTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *MemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"get_state", "set_state", "remember", "recall",
					"get_history", "end_session",
				},
				"description": "The memory operation to perform",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "State key for get_state/set_state operations",
			},
			"value": map[string]interface{}{
				"description": "Value for set_state operations (any type)",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to store for the remember operation",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query for the recall operation",
			},
			"metadata": map[string]interface{}{
				"type":        "object",
				"description": "Metadata attached to a remembered item",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Limit for recall results (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *MemoryTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "get_state":
		return t.handleGetState(args, toolCtx)
	case "set_state":
		return t.handleSetState(args, toolCtx)
	case "remember":
		return t.handleRemember(args, toolCtx)
	case "recall":
		return t.handleRecall(args, toolCtx)
	case "get_history":
		return t.handleGetHistory(args, toolCtx)
	case "end_session":
		return t.handleEndSession(args, toolCtx)
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

// handleGetState retrieves a value from session state.
func (t *MemoryTool) handleGetState(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for get_state operation")
	}

	value, exists := toolCtx.GetState(key)
	if !exists {
		return map[string]interface{}{
			"key":    key,
			"exists": false,
			"value":  nil,
		}, nil
	}

	return map[string]interface{}{
		"key":    key,
		"exists": true,
		"value":  value,
	}, nil
}

// handleSetState sets a value in session state.
func (t *MemoryTool) handleSetState(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for set_state operation")
	}

	value := args["value"] // Can be any type

	toolCtx.SetState(key, value)

	return map[string]interface{}{
		"key":     key,
		"value":   value,
		"success": true,
		"message": fmt.Sprintf("State key '%s' set successfully", key),
	}, nil
}

// handleRemember stores content in long-term memory.
func (t *MemoryTool) handleRemember(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content parameter is required for remember operation")
	}

	metadata := make(map[string]interface{})
	if m, ok := args["metadata"].(map[string]interface{}); ok {
		metadata = m
	}

	if err := toolCtx.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	return map[string]interface{}{
		"content":  content,
		"metadata": metadata,
		"success":  true,
		"message":  "Memory stored successfully",
	}, nil
}

// handleRecall searches long-term memory for relevant items.
func (t *MemoryTool) handleRecall(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	query, ok := args["query"].(string)
	if !ok {
		return nil, fmt.Errorf("query parameter is required for recall operation")
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	results, err := toolCtx.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}

	return map[string]interface{}{
		"query":   query,
		"limit":   limit,
		"count":   len(results),
		"results": results,
		"success": true,
	}, nil
}

// handleGetHistory retrieves a readable summary of the session history.
func (t *MemoryTool) handleGetHistory(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	history := toolCtx.GetSessionHistory()

	events := make([]map[string]interface{}, len(history))
	for i, ev := range history {
		events[i] = map[string]interface{}{
			"id":          ev.ID,
			"author":      ev.Author,
			"timestamp":   ev.Timestamp,
			"partial":     ev.Partial,
			"has_content": ev.Content != nil,
		}
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			var contentSummary []string
			for _, part := range ev.Content.Parts {
				switch p := part.(type) {
				case core.TextPart:
					preview := p.Text
					if len(preview) > 100 {
						preview = preview[:100] + "..."
					}
					contentSummary = append(contentSummary, fmt.Sprintf("text: %s", preview))
				case core.FunctionCallPart:
					contentSummary = append(contentSummary, fmt.Sprintf("function_call: %s", p.FunctionCall.Name))
				case core.FunctionResponsePart:
					contentSummary = append(contentSummary, fmt.Sprintf("function_response: %s", p.FunctionResponse.Name))
				default:
					contentSummary = append(contentSummary, "other")
				}
			}
			events[i]["content_summary"] = strings.Join(contentSummary, ", ")
		}
	}

	return map[string]interface{}{
		"events":  events,
		"count":   len(events),
		"success": true,
	}, nil
}

// handleEndSession marks the session for graceful shutdown.
func (t *MemoryTool) handleEndSession(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	toolCtx.EndSession()

	return map[string]interface{}{
		"success": true,
		"message": "Session will end after this reply",
	}, nil
}
