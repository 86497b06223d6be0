package voice

import (
	"context"
	"time"

	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/logging"
	"github.com/mindbots/voicemesh/metrics"
	"github.com/mindbots/voicemesh/model"
	"github.com/mindbots/voicemesh/tool"
)

// generateReply runs one reply cycle: model call, tool loop, synthesis,
// playback. greetingInstructions, when non-empty, is appended to the system
// prompt to steer an unprompted opening line.
func (s *AgentSession) generateReply(replyID, userText, greetingInstructions string) {
	replyCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.replyCancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.replyCancel = nil
		s.mu.Unlock()
	}()

	s.setState(StateThinking)
	defer s.setState(StateListening)

	userContent := core.Content{}
	if userText != "" {
		userContent = core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: userText}}}
	}

	runCtx := s.newRunContext(replyID, userContent)
	runCtx.Context = replyCtx

	instructions, err := s.agent.ResolveInstructions(runCtx)
	if err != nil {
		s.logger.Error("instruction resolution failed", "room", s.sessionID, "error", err)
		return
	}
	if greetingInstructions != "" {
		instructions = instructions + "\n\n" + greetingInstructions
	}

	toolDefs := buildToolDefinitions(s.agent.Tools())
	contents := historyContents(runCtx.Session, s.agent.MaxHistoryMessages())

	endSession := false

	for {
		if err := runCtx.Limiter.Increment(); err != nil {
			s.logger.Warn("model call limit reached", "room", s.sessionID, "reply_id", replyID, "error", err)
			break
		}

		req := model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        toolDefs,
			Stream:       true,
		}

		start := time.Now()
		finalResp, err := s.callModel(replyCtx, req)
		dur := time.Since(start)
		if err != nil {
			s.logModelCall(0, dur, err)
			s.logger.Error("model call failed", "room", s.sessionID, "reply_id", replyID, "error", err)
			return
		}
		if finalResp == nil {
			return
		}

		fnCalls := functionCalls(finalResp.Content)

		llm := metrics.LLMMetrics{
			ReplyID:   replyID,
			Model:     s.opts.Model.Info().Name,
			ToolCalls: len(fnCalls),
			Duration:  dur,
			Timestamp: time.Now(),
		}
		if finalResp.Usage != nil {
			llm.PromptTokens = finalResp.Usage.PromptTokens
			llm.CompletionTokens = finalResp.Usage.CompletionTokens
			llm.TotalTokens = finalResp.Usage.TotalTokens
		}
		s.emitMetrics(llm)
		s.logModelCall(llm.TotalTokens, dur, nil)

		if len(fnCalls) == 0 {
			s.speak(replyCtx, replyID, finalResp)
			break
		}

		// Persist the tool call request, execute each call and feed the
		// results back for another model turn.
		callEv := core.NewEvent(replyID, s.agent.Name())
		callEv.Content = &finalResp.Content
		s.persistAndEmit(callEv)
		contents = append(contents, finalResp.Content)

		for _, fc := range fnCalls {
			respEv := s.executeToolCall(runCtx, fc)
			if respEv.Actions.EndSession != nil && *respEv.Actions.EndSession {
				endSession = true
			}
			if len(respEv.Actions.StateDelta) > 0 {
				if err := s.opts.SessionStore.ApplyDelta(s.sessionID, respEv.Actions.StateDelta); err != nil {
					s.logger.Error("state delta commit failed", "room", s.sessionID, "error", err)
				}
			}
			s.persistAndEmit(respEv)
			if respEv.Content != nil {
				contents = append(contents, *respEv.Content)
			}
		}
	}

	if endSession {
		s.shutdown(nil)
	}
}

// callModel drains one streaming model exchange and returns the final
// (non-partial) response.
func (s *AgentSession) callModel(ctx context.Context, req model.Request) (*model.Response, error) {
	respCh, errCh := s.opts.Model.Generate(ctx, req)

	var final *model.Response
	for {
		select {
		case <-ctx.Done():
			return final, nil
		case resp, ok := <-respCh:
			if !ok {
				return final, nil
			}
			if resp.Partial {
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
}

// toolOutcome carries a tool result across the execution goroutine boundary.
type toolOutcome struct {
	result any
	err    error
}

// executeToolCall runs a single tool call with panic safety and returns the
// function response event carrying accumulated tool actions. The agent's
// tool timeout bounds the call: the tool context is cancelled at the
// deadline, and a tool that ignores cancellation is abandoned so the reply
// cycle keeps moving. Abandoned calls run against a scoped copy of the run
// context, so late writes cannot leak into the reply state, and their
// actions are discarded.
func (s *AgentSession) executeToolCall(runCtx *core.RunContext, fc core.FunctionCall) core.Event {
	execCtx := *runCtx
	execCtx.StateDelta = make(map[string]any, len(runCtx.StateDelta))
	for k, v := range runCtx.StateDelta {
		execCtx.StateDelta[k] = v
	}
	cancel := context.CancelFunc(func() {})
	if timeout := s.agent.ToolTimeout(); timeout > 0 {
		execCtx.Context, cancel = context.WithTimeout(runCtx.Context, timeout)
	}
	defer cancel()

	toolCtx := core.NewToolContext(&execCtx, fc.ID)

	start := time.Now()
	outCh := make(chan toolOutcome, 1)
	go func() {
		var out toolOutcome
		defer func() {
			if r := recover(); r != nil {
				out = toolOutcome{err: tool.NewToolError(fc.Name, "tool panicked", "PANIC")}
				s.logger.Error("tool panicked", "room", s.sessionID, "tool", fc.Name, "recover", r)
			}
			outCh <- out
		}()
		out.result, out.err = s.agent.ExecuteTool(toolCtx, fc.Name, fc.Arguments)
	}()

	var result any
	var err error
	completed := true
	select {
	case out := <-outCh:
		result, err = out.result, out.err
	case <-execCtx.Context.Done():
		completed = false
		err = tool.NewToolError(fc.Name, "tool execution timed out", "TIMEOUT")
		s.logger.Warn("tool timed out", "room", s.sessionID, "tool", fc.Name, "timeout", s.agent.ToolTimeout())
	}
	dur := time.Since(start)

	if vl, ok := s.logger.(*logging.VoiceMeshLogger); ok {
		vl.LogToolCall(fc.Name, dur, err == nil, err)
	} else {
		s.logger.Info("tool executed", "room", s.sessionID, "tool", fc.Name, "duration_ms", dur.Milliseconds(), "error", err != nil)
	}

	respEv := core.NewFunctionResponseEvent(runCtx.ReplyID, s.agent.Name(), fc.ID, fc.Name, result, err)
	if completed {
		toolCtx.InternalApplyActions(&respEv)
		runCtx.ApplyStateDelta(execCtx.StateDelta)
	}
	return respEv
}

// speak synthesizes and publishes the final reply text, then persists the
// assistant event. A reply cancelled mid-flight is persisted as interrupted.
func (s *AgentSession) speak(ctx context.Context, replyID string, resp *model.Response) {
	text := contentText(resp.Content)
	if text == "" {
		return
	}

	agentEv := core.NewAgentMessageEvent(replyID, s.agent.Name(), text)

	s.setState(StateSpeaking)

	start := time.Now()
	frame, err := s.opts.TTS.Synthesize(ctx, text)
	dur := time.Since(start)

	if vl, ok := s.logger.(*logging.VoiceMeshLogger); ok {
		vl.LogTTSCall(s.opts.TTS.Voice(), len(text), dur, err == nil, err)
	}

	switch {
	case ctx.Err() != nil:
		// Barge-in during synthesis. Keep the reply in history but mark it.
		interrupted := true
		agentEv.Interrupted = &interrupted
	case err != nil:
		s.logger.Error("speech synthesis failed", "room", s.sessionID, "reply_id", replyID, "error", err)
	default:
		s.emitMetrics(metrics.TTSMetrics{
			RequestID:     core.NewID(),
			Voice:         s.opts.TTS.Voice(),
			Characters:    len(text),
			AudioDuration: frame.Duration(),
			Duration:      dur,
			Timestamp:     time.Now(),
		})
		if err := s.room.PublishAudio(frame); err != nil {
			s.logger.Error("audio publish failed", "room", s.sessionID, "reply_id", replyID, "error", err)
		}
	}

	s.persistAndEmit(agentEv)
}

func (s *AgentSession) logModelCall(tokens int, dur time.Duration, err error) {
	if vl, ok := s.logger.(*logging.VoiceMeshLogger); ok {
		vl.LogLLMCall(s.opts.Model.Info().Name, tokens, dur, err == nil, err)
	}
}

// buildToolDefinitions converts the agent tool registry into model tool
// declarations.
func buildToolDefinitions(tools map[string]tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// historyContents projects the session conversation history into model
// contents, keeping at most max trailing messages.
func historyContents(sess *core.Session, max int) []core.Content {
	if sess == nil {
		return nil
	}
	history := sess.GetConversationHistory()
	if max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	contents := make([]core.Content, 0, len(history))
	for _, ev := range history {
		if ev.Content == nil {
			continue
		}
		contents = append(contents, *ev.Content)
	}
	return contents
}

func functionCalls(c core.Content) []core.FunctionCall {
	var calls []core.FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

func contentText(c core.Content) string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
