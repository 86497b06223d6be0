package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/internal/util"
	"github.com/mindbots/voicemesh/tool"
)

// Options configures an Agent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Instruction is the persona system prompt. Supports Go template syntax
	// rendered against session state.
	Instruction Instruction

	// GreetingInstruction steers the opening line spoken when a participant
	// joins. Empty means no automatic greeting.
	GreetingInstruction Instruction

	// Tools available for the model to call during a reply.
	Tools map[string]tool.Tool

	// ToolTimeout bounds individual tool executions.
	ToolTimeout time.Duration

	// MaxHistoryMessages caps the conversation history sent to the model.
	MaxHistoryMessages int
}

// Agent is a voice persona: a named character with a system instruction,
// an optional greeting and a set of callable tools. An Agent carries no
// per-conversation state; the same Agent can drive many rooms.
//
// The agent integrates with language models to support:
//   - Natural language conversation through system prompts
//   - Function calling with registered tools
//   - Session state templating in instructions
//   - An automatic spoken greeting when a participant joins
type Agent struct {
	name                string
	instruction         Instruction
	greetingInstruction Instruction
	tools               map[string]tool.Tool
	toolTimeout         time.Duration
	maxHistoryMessages  int
}

// New creates a voice persona with sensible defaults.
//
// Defaults:
//   - A generic helpful-assistant instruction derived from the name
//   - Empty tool registry
//   - 15-second timeout for tool calls
//   - 20-message conversation history limit
func New(name string, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful voice assistant. Keep replies short and conversational.", name)),
		ToolTimeout:        15 * time.Second,
		MaxHistoryMessages: 20,
		Tools:              make(map[string]tool.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		name:                name,
		instruction:         opts.Instruction,
		greetingInstruction: opts.GreetingInstruction,
		tools:               opts.Tools,
		toolTimeout:         opts.ToolTimeout,
		maxHistoryMessages:  opts.MaxHistoryMessages,
	}
}

// Name returns the persona name used as the event author for agent replies.
func (a *Agent) Name() string { return a.name }

// Info returns agent metadata for run contexts.
func (a *Agent) Info() core.AgentInfo {
	return core.AgentInfo{Name: a.name, Type: "voice"}
}

// ToolTimeout returns the per-call tool execution bound.
func (a *Agent) ToolTimeout() time.Duration { return a.toolTimeout }

// MaxHistoryMessages returns the conversation history cap sent to the model.
func (a *Agent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// RegisterTool adds a function tool to the agent's capability set.
//
// Registered tools become available for the language model to call during
// conversations. Tools should implement the tool.Tool interface with proper
// JSON schema definitions.
//
// Example:
//
//	weatherTool := tool.NewFunctionTool("get_weather", "Get weather for a location", schema, weatherFunc)
//	agent.RegisterTool(weatherTool)
func (a *Agent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *Agent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool from the agent's capability set.
//
// Returns true if the tool was found and removed, false if it wasn't registered.
func (a *Agent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool checks if a tool is registered with the agent.
func (a *Agent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *Agent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// GetTool retrieves a specific tool by name.
//
// Returns the tool and true if found, nil and false if not registered.
func (a *Agent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// Tools returns a copy of the registered tool map for function declarations.
func (a *Agent) Tools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// ResolveInstructions produces the final system prompt by resolving the
// static or dynamic instruction source, then rendering template variables
// against the current session state.
func (a *Agent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	text, err := a.instruction.Resolve(runCtx)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	state := map[string]any{}
	if runCtx != nil && runCtx.Session != nil {
		for _, k := range stateKeys(runCtx) {
			if v, ok := runCtx.GetState(k); ok {
				state[k] = v
			}
		}
	}

	rendered, err := util.RenderTemplate(text, state)
	if err != nil {
		return "", fmt.Errorf("render instruction template: %w", err)
	}

	return rendered, nil
}

// ResolveGreetingInstructions resolves the greeting prompt, or returns
// ("", nil) when no greeting is configured.
func (a *Agent) ResolveGreetingInstructions(runCtx *core.RunContext) (string, error) {
	if a.greetingInstruction.IsZero() {
		return "", nil
	}
	return a.greetingInstruction.Resolve(runCtx)
}

// ExecuteTool deserializes JSON arguments and invokes the named tool returning
// its result or an error if the tool is unknown or validation fails.
func (a *Agent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error) {
	t, exists := a.tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argsMap := make(map[string]interface{})
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return t.Call(toolCtx, argsMap)
}

// stateKeys lists the session state keys visible to instruction templates,
// including staged delta keys not yet committed.
func stateKeys(runCtx *core.RunContext) []string {
	seen := map[string]bool{}
	var keys []string

	if runCtx.Session != nil {
		for k := range runCtx.Session.Clone().State {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	for k := range runCtx.StateDelta {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	return keys
}
