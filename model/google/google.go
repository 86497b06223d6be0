// Package google provides a model wrapper for the Gemini API via the
// google.golang.org/genai SDK.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/model"
	"google.golang.org/genai"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float32
	APIKey      string
}

// Model wraps the Gemini generate-content API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model. The API key falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables when unset.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := m.buildContents(req.Contents)
		config := m.buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, contents, config, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		out <- m.buildResponse(resp)
	}()

	return out, errCh
}

// buildContents converts normalized contents into genai contents. Tool
// responses are forwarded as function response parts; system contents are
// carried via the config system instruction instead.
func (m *Model) buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		if c.Role == "system" {
			continue
		}

		role := genai.Role(genai.RoleUser)
		if c.Role == "assistant" {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, genai.NewPartFromText(part.Text))
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, genai.NewPartFromFunctionCall(part.FunctionCall.Name, args))
			case core.FunctionResponsePart:
				resp := map[string]any{"output": part.FunctionResponse.Response}
				if part.FunctionResponse.Error != "" {
					resp = map[string]any{"error": part.FunctionResponse.Error}
				}
				parts = append(parts, genai.NewPartFromFunctionResponse(part.FunctionResponse.Name, resp))
			}
		}

		if len(parts) > 0 {
			out = append(out, genai.NewContentFromParts(parts, role))
		}
	}

	return out
}

// buildConfig assembles the generation config including the system
// instruction and tool declarations.
func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(m.opts.Temperature),
	}

	sys := req.Instructions
	for _, c := range req.Contents {
		if c.Role != "system" {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
				if sys != "" {
					sys += "\n"
				}
				sys += tp.Text
			}
		}
	}
	if sys != "" {
		config.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  schemaFromParameters(t.Function.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return config
}

// schemaFromParameters converts a plain JSON-schema map into a genai.Schema
// via a JSON round trip. Only the subset of JSON schema shared with genai
// (type, properties, required, description, enum, items) survives.
func schemaFromParameters(params map[string]interface{}) *genai.Schema {
	if params == nil {
		return nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil
	}

	var schema genai.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil
	}

	return &schema
}

func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var textBuilder strings.Builder
	var last *genai.GenerateContentResponse

	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		last = resp
		if delta := resp.Text(); delta != "" {
			textBuilder.WriteString(delta)
			out <- model.Response{
				Partial: true,
				Content: core.Content{
					Role:  "assistant",
					Parts: []core.Part{core.TextPart{Text: delta}},
				},
			}
		}
	}

	final := m.buildResponse(last)
	if textBuilder.Len() > 0 {
		final.Content = core.Content{
			Role:  "assistant",
			Parts: []core.Part{core.TextPart{Text: textBuilder.String()}},
		}
	}
	out <- final
}

// buildResponse converts a genai response into the normalized final response.
func (m *Model) buildResponse(resp *genai.GenerateContentResponse) model.Response {
	if resp == nil {
		return model.Response{Partial: false, Content: core.Content{Role: "assistant"}, FinishReason: "stop"}
	}

	var parts []core.Part
	finishReason := "stop"

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		cand := resp.Candidates[0]
		if cand.FinishReason != "" {
			finishReason = strings.ToLower(string(cand.FinishReason))
		}
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				parts = append(parts, core.TextPart{Text: p.Text})
			}
			if p.FunctionCall != nil {
				args := ""
				if argsBytes, err := json.Marshal(p.FunctionCall.Args); err == nil {
					args = string(argsBytes)
				}
				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:        p.FunctionCall.ID,
						Name:      p.FunctionCall.Name,
						Arguments: args,
					},
				})
			}
		}
	}

	out := model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
	}

	if resp.UsageMetadata != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return out
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "google",
		SupportsTools: true,
	}
}
