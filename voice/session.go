package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mindbots/voicemesh/agent"
	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/logging"
	"github.com/mindbots/voicemesh/memory"
	"github.com/mindbots/voicemesh/metrics"
	"github.com/mindbots/voicemesh/model"
	"github.com/mindbots/voicemesh/rtc"
	"github.com/mindbots/voicemesh/session"
	"github.com/mindbots/voicemesh/stt"
	"github.com/mindbots/voicemesh/tts"
	"github.com/mindbots/voicemesh/turn"
	"github.com/mindbots/voicemesh/vad"
)

// Room is the subset of the rtc room surface the session drives. *rtc.Room
// satisfies it; tests can inject a fake.
type Room interface {
	Name() string
	Events() <-chan rtc.Event
	PublishAudio(frame rtc.AudioFrame) error
	Disconnect() error
}

// Options configure an AgentSession.
type Options struct {
	// Model generates replies. Required.
	Model model.Model

	// STT transcribes user utterances. Required.
	STT stt.STT

	// TTS synthesizes replies. Required.
	TTS tts.TTS

	// VAD segments incoming audio into utterances.
	// Defaults to the energy detector.
	VAD vad.Detector

	// TurnDetector decides when the user is done talking.
	// Defaults to the heuristic detector.
	TurnDetector turn.Detector

	// SessionStore persists conversation history.
	// Defaults to an in-memory store.
	SessionStore core.SessionStore

	// MemoryStore backs the memory tools. Defaults to an in-memory store.
	MemoryStore core.MemoryStore

	// Logger receives structured session logs. Defaults to NoOp.
	Logger logging.Logger

	// EventBufferSize sets the session event channel buffer.
	EventBufferSize int

	// FrameBufferSize sets the VAD feed buffer.
	FrameBufferSize int

	// MaxModelCalls bounds model calls per reply cycle (tool loop guard).
	MaxModelCalls int
}

// AgentSession runs one persona agent in one room. Create it with
// NewAgentSession, call Start once, range over Events and call Close to
// shut down.
type AgentSession struct {
	opts   Options
	agent  *agent.Agent
	room   Room
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	wg     sync.WaitGroup

	sessionID string

	mu          sync.Mutex
	state       AgentState
	utterance   stt.Stream
	speechStart time.Time
	replyCancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// NewAgentSession creates a session with the given pipeline components.
func NewAgentSession(optFns ...func(o *Options)) *AgentSession {
	opts := Options{
		VAD:             vad.NewEnergyDetector(),
		TurnDetector:    turn.NewHeuristicDetector(),
		SessionStore:    session.NewInMemoryStore(),
		MemoryStore:     memory.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
		EventBufferSize: 256,
		FrameBufferSize: 64,
		MaxModelCalls:   10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentSession{
		opts:   opts,
		logger: opts.Logger,
		events: make(chan Event, opts.EventBufferSize),
		state:  StateInitializing,
		done:   make(chan struct{}),
	}
}

// Start connects the pipeline and begins processing room audio. It returns
// once the session loop is running; conversation flows through Events.
func (s *AgentSession) Start(ctx context.Context, a *agent.Agent, room Room) error {
	if a == nil {
		return fmt.Errorf("agent is required")
	}
	if room == nil {
		return fmt.Errorf("room is required")
	}
	if s.opts.Model == nil || s.opts.STT == nil || s.opts.TTS == nil {
		return fmt.Errorf("model, stt and tts are required")
	}

	s.agent = a
	s.room = room
	s.sessionID = room.Name()

	if _, err := s.opts.SessionStore.Create(s.sessionID); err != nil {
		return fmt.Errorf("create session %q: %w", s.sessionID, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	frames := make(chan rtc.AudioFrame, s.opts.FrameBufferSize)
	vadEvents, err := s.opts.VAD.Detect(s.ctx, frames)
	if err != nil {
		s.cancel()
		return fmt.Errorf("start voice activity detection: %w", err)
	}

	s.logger.Info("voice session starting", "room", s.sessionID, "agent", a.Name(), "model", s.opts.Model.Info().Name)

	s.wg.Add(2)
	go s.roomLoop(frames)
	go s.vadLoop(vadEvents)

	s.setState(StateListening)

	// Speak the configured greeting before the first user turn.
	if greeting, err := a.ResolveGreetingInstructions(s.newRunContext(core.NewID(), core.Content{})); err != nil {
		s.logger.Warn("greeting resolution failed", "error", err)
	} else if greeting != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.generateReply(core.NewID(), "", greeting)
		}()
	}

	return nil
}

// Events returns the session event stream. The channel closes after the
// EventClose event.
func (s *AgentSession) Events() <-chan Event { return s.events }

// History returns the persisted conversation history (finals only).
func (s *AgentSession) History() ([]core.Event, error) {
	sess, err := s.opts.SessionStore.Get(s.sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetConversationHistory(), nil
}

// SessionID returns the room name the session is bound to.
func (s *AgentSession) SessionID() string { return s.sessionID }

// State returns the current agent state.
func (s *AgentSession) State() AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close shuts the session down: the room is disconnected, in-flight work is
// cancelled and the event channel is closed after a final EventClose.
func (s *AgentSession) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *AgentSession) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.logger.Info("voice session closing", "room", s.sessionID, "cause", fmt.Sprintf("%v", cause))
		if s.cancel != nil { // Close before a successful Start
			s.cancel()
		}
		if s.room != nil {
			_ = s.room.Disconnect()
		}
		go func() {
			s.wg.Wait()
			close(s.done)
			s.events <- Event{Type: EventClose, Err: cause}
			close(s.events)
		}()
	})
}

// roomLoop is the audio pump: remote frames feed the VAD and, while an
// utterance is open, the active recognition stream.
func (s *AgentSession) roomLoop(frames chan<- rtc.AudioFrame) {
	defer s.wg.Done()
	defer close(frames)

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.room.Events():
			if !ok {
				s.shutdown(nil)
				return
			}
			switch ev.Type {
			case rtc.EventAudioFrame:
				if ev.Frame == nil {
					continue
				}
				select {
				case frames <- *ev.Frame:
				default:
					s.logger.Warn("vad frame dropped", "room", s.sessionID)
				}
				s.pushToUtterance(*ev.Frame)
			case rtc.EventParticipantJoined:
				s.logger.Info("participant joined", "room", s.sessionID, "identity", ev.Participant.Identity)
			case rtc.EventParticipantLeft:
				s.logger.Info("participant left", "room", s.sessionID, "identity", ev.Participant.Identity)
			case rtc.EventDisconnected:
				s.shutdown(nil)
				return
			}
		}
	}
}

// vadLoop turns speech transitions into utterance lifecycle calls.
func (s *AgentSession) vadLoop(events <-chan vad.Event) {
	defer s.wg.Done()

	for ev := range events {
		switch ev.Type {
		case vad.EventSpeechStart:
			s.onSpeechStart()
		case vad.EventSpeechEnd:
			s.onSpeechEnd(ev)
		}
	}
}

func (s *AgentSession) pushToUtterance(frame rtc.AudioFrame) {
	s.mu.Lock()
	stream := s.utterance
	s.mu.Unlock()
	if stream == nil {
		return
	}
	if err := stream.Push(frame); err != nil {
		s.logger.Warn("stt push failed", "room", s.sessionID, "error", err)
	}
}

// onSpeechStart opens a recognition stream for the new utterance. If the
// agent is mid-reply the user is barging in, so the reply is interrupted.
func (s *AgentSession) onSpeechStart() {
	s.interruptReply()

	stream, err := s.opts.STT.NewStream(s.ctx)
	if err != nil {
		s.logger.Error("stt stream open failed", "room", s.sessionID, "error", err)
		return
	}

	s.mu.Lock()
	s.utterance = stream
	s.speechStart = time.Now()
	s.mu.Unlock()

	s.logger.Debug("utterance started", "room", s.sessionID)
}

// onSpeechEnd finalizes the utterance: close the stream send side, await the
// final transcript, then schedule the reply after the endpointing delay.
func (s *AgentSession) onSpeechEnd(vadEv vad.Event) {
	s.mu.Lock()
	stream := s.utterance
	s.utterance = nil
	s.mu.Unlock()

	if stream == nil {
		return
	}

	speechEnd := time.Now()
	if err := stream.CloseSend(); err != nil {
		s.logger.Warn("stt close failed", "room", s.sessionID, "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.finalizeUtterance(stream, speechEnd, vadEv.SpeechDuration)
	}()
}

func (s *AgentSession) finalizeUtterance(stream stt.Stream, speechEnd time.Time, speechDuration time.Duration) {
	var final *stt.SpeechEvent
	for ev := range stream.Events() {
		switch ev.Type {
		case stt.SpeechEventInterim:
			s.emit(Event{Type: EventUserInputTranscribed, Transcript: Transcript{Text: ev.Text, Language: ev.Language}})
		case stt.SpeechEventFinal:
			e := ev
			final = &e
		case stt.SpeechEventError:
			s.logger.Error("stt recognition failed", "room", s.sessionID, "error", ev.Err)
			return
		}
	}
	if final == nil || s.ctx.Err() != nil {
		return
	}

	transcriptionDelay := time.Since(speechEnd)
	s.emitMetrics(metrics.VADMetrics{
		InferenceCount: 1,
		SpeechDuration: speechDuration,
		Timestamp:      time.Now(),
	})
	s.emitMetrics(metrics.STTMetrics{
		RequestID:     core.NewID(),
		Provider:      s.opts.STT.Provider(),
		AudioDuration: final.AudioDuration,
		Duration:      transcriptionDelay,
		Timestamp:     time.Now(),
	})

	if final.Text == "" {
		return
	}

	s.emit(Event{Type: EventUserInputTranscribed, Transcript: Transcript{Text: final.Text, Final: true, Language: final.Language}})

	replyID := core.NewID()

	userEv := core.NewUserTranscriptEvent(replyID, final.Text)
	s.persistAndEmit(userEv)

	prob, err := s.opts.TurnDetector.PredictEndOfTurn(s.ctx, final.Text)
	if err != nil {
		s.logger.Warn("turn prediction failed", "room", s.sessionID, "error", err)
		prob = 1
	}
	delay := s.opts.TurnDetector.Delay(prob)

	s.emitMetrics(metrics.EOUMetrics{
		ReplyID:             replyID,
		EndOfUtteranceDelay: delay,
		TranscriptionDelay:  transcriptionDelay,
		Timestamp:           time.Now(),
	})

	select {
	case <-s.ctx.Done():
		return
	case <-time.After(delay):
	}

	// If the user started talking again during the delay, let the next
	// utterance drive the reply instead.
	s.mu.Lock()
	stillQuiet := s.utterance == nil
	s.mu.Unlock()
	if !stillQuiet {
		return
	}

	s.generateReply(replyID, final.Text, "")
}

// interruptReply cancels an in-flight reply cycle (barge-in).
func (s *AgentSession) interruptReply() {
	s.mu.Lock()
	cancel := s.replyCancel
	s.mu.Unlock()
	if cancel != nil {
		s.logger.Info("reply interrupted", "room", s.sessionID)
		cancel()
	}
}

func (s *AgentSession) setState(next AgentState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev == next {
		return
	}
	s.emit(Event{Type: EventAgentStateChanged, OldState: prev, NewState: next})
}

// emit delivers a session event without blocking the pipeline.
func (s *AgentSession) emit(ev Event) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warn("session event dropped", "room", s.sessionID, "type", ev.Type)
	}
}

func (s *AgentSession) emitMetrics(m metrics.AgentMetrics) {
	s.emit(Event{Type: EventMetricsCollected, Metrics: m})
}

// persistAndEmit appends the event to the session store and surfaces it as a
// conversation item.
func (s *AgentSession) persistAndEmit(ev core.Event) {
	if err := s.opts.SessionStore.AppendEvent(s.sessionID, ev); err != nil {
		s.logger.Error("event persistence failed", "room", s.sessionID, "event_id", ev.ID, "error", err)
	}
	s.emit(Event{Type: EventConversationItemAdded, Item: &ev})
}

func (s *AgentSession) newRunContext(replyID string, userContent core.Content) *core.RunContext {
	return core.NewRunContext(
		s.ctx,
		s.sessionID,
		replyID,
		s.agent.Info(),
		userContent,
		s.opts.MaxModelCalls,
		nil,
		s.currentSession(),
		s.opts.SessionStore,
		s.opts.MemoryStore,
		s.logger,
	)
}

func (s *AgentSession) currentSession() *core.Session {
	sess, err := s.opts.SessionStore.Get(s.sessionID)
	if err != nil {
		s.logger.Warn("session snapshot failed", "room", s.sessionID, "error", err)
		return core.NewSession(s.sessionID)
	}
	return sess
}
