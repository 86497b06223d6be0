// Package anthropic adapts the Anthropic Messages API (streaming and tool
// use included) to the model contract the voice reply flow drives. Text
// deltas are surfaced as partial responses so callers can observe a reply
// forming; the final response carries the assembled content, stop reason and
// token usage.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/model"
)

// Options configure the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates an Anthropic model using the official client. The API key
// falls back to the ANTHROPIC_API_KEY environment variable when unset.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions(optFns...)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: defaultOptions(optFns...)}
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)
		if req.Stream {
			m.streamReply(ctx, params, out, errCh)
			return
		}
		m.completeReply(ctx, params, out, errCh)
	}()

	return out, errCh
}

// streamReply drives one streaming exchange. Text deltas go out as partial
// responses while the accumulator assembles the full message; tool use blocks
// arrive complete on the final response once the stream drains.
func (m *Model) streamReply(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
			return
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: delta.Text}},
					},
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	out <- finalResponse(acc)
}

// completeReply performs a single blocking exchange.
func (m *Model) completeReply(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("anthropic api error: %w", err)
		return
	}

	out <- finalResponse(*resp)
}

// finalResponse converts an assembled message (streamed or not) into the
// normalized final response.
func finalResponse(msg anthropic.Message) model.Response {
	var parts []core.Part

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText(); text.Text != "" {
				parts = append(parts, core.TextPart{Text: text.Text})
			}
		case "tool_use":
			toolUse := block.AsToolUse()
			args := ""
			if toolUse.Input != nil {
				if raw, err := json.Marshal(toolUse.Input); err == nil {
					args = string(raw)
				}
			}
			parts = append(parts, core.FunctionCallPart{
				FunctionCall: core.FunctionCall{
					ID:        toolUse.ID,
					Name:      toolUse.Name,
					Arguments: args,
				},
			})
		}
	}

	finishReason := "stop"
	if msg.StopReason != "" {
		finishReason = string(msg.StopReason)
	}

	return model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// buildParams assembles the Messages API request from the normalized reply
// request: system prompt, conversation turns and tool declarations.
func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    conversationMessages(req.Contents),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	// The rendered persona instructions lead the system prompt; any inline
	// system turns from history follow.
	system := systemBlocks(req.Contents)
	if req.Instructions != "" {
		system = append([]anthropic.TextBlockParam{{Text: req.Instructions}}, system...)
	}
	if len(system) > 0 {
		params.System = system
	}

	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
	}

	return params
}

// conversationMessages converts the normalized conversation history into
// Messages API turns. Tool results cannot ride on assistant turns: the API
// expects each assistant tool_use to be answered by a tool_result block in
// the next user turn, so results are indexed by call ID and stitched in
// right after the assistant turn that requested them.
func conversationMessages(contents []core.Content) []anthropic.MessageParam {
	toolResults := collectToolResults(contents)

	var messages []anthropic.MessageParam
	for _, c := range contents {
		switch c.Role {
		case "system", "tool":
			// System turns feed the system prompt; tool turns are stitched
			// in below as tool_result user turns.
			continue
		case "assistant":
			blocks, callIDs := assistantBlocks(c.Parts)
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			if results := resultBlocks(callIDs, toolResults); len(results) > 0 {
				messages = append(messages, anthropic.NewUserMessage(results...))
			}
		default:
			// User turns, and anything unrecognized spoken into the room.
			if blocks := textBlocks(c.Parts); len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	return messages
}

// collectToolResults indexes function responses by call ID.
func collectToolResults(contents []core.Content) map[string]string {
	results := map[string]string{}

	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			if s, ok := fr.FunctionResponse.Response.(string); ok {
				results[fr.FunctionResponse.ID] = s
			} else {
				results[fr.FunctionResponse.ID] = fmt.Sprintf("%v", fr.FunctionResponse.Response)
			}
		}
	}

	return results
}

// systemBlocks extracts inline system turns from the history.
func systemBlocks(contents []core.Content) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam

	for _, c := range contents {
		if c.Role != "system" {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
				blocks = append(blocks, anthropic.TextBlockParam{Text: tp.Text})
			}
		}
	}

	return blocks
}

// textBlocks converts text parts into content blocks.
func textBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(tp.Text))
		}
	}

	return blocks
}

// assistantBlocks converts an assistant turn into content blocks, returning
// the tool call IDs it carries so matching results can follow.
func assistantBlocks(parts []core.Part) ([]anthropic.ContentBlockParamUnion, []string) {
	var blocks []anthropic.ContentBlockParamUnion
	var callIDs []string

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			var input any
			if part.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
					input = part.FunctionCall.Arguments
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(
				part.FunctionCall.ID,
				input,
				part.FunctionCall.Name,
			))
			callIDs = append(callIDs, part.FunctionCall.ID)
		}
	}

	return blocks, callIDs
}

// resultBlocks builds the tool_result blocks answering the given call IDs,
// consuming them from the index so each result is attached once.
func resultBlocks(callIDs []string, toolResults map[string]string) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	for _, id := range callIDs {
		if result, ok := toolResults[id]; ok {
			blocks = append(blocks, anthropic.NewToolResultBlock(id, result, false))
			delete(toolResults, id)
		}
	}

	return blocks
}

// toolParams converts normalized tool definitions into Messages API tool
// declarations.
func toolParams(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, len(tools))

	for i, t := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if p := t.Function.Parameters; p != nil {
			if properties, ok := p["properties"]; ok {
				schema.Properties = properties
			}
			schema.Required = requiredFields(p["required"])
		}
		params[i] = anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
	}

	return params
}

// requiredFields normalizes the required list, which arrives as []string from
// hand-written schemas and []interface{} from decoded JSON.
func requiredFields(v any) []string {
	switch required := v.(type) {
	case []string:
		return required
	case []interface{}:
		fields := make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
