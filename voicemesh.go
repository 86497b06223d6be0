// Package voicemesh provides a high-level façade over the voice pipeline and
// service abstractions (sessions, memory & logging) enabling rapid
// construction of conversational voice agents. Most applications interact
// with this package by:
//  1. Creating a VoiceMesh via New() with the provider components (model, STT, TTS)
//  2. Building a persona with agent.New (instructions, tools, greeting)
//  3. Starting an AgentSession against a connected room
//
// The façade delegates orchestration to voice.AgentSession while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply durable
// store implementations and a structured logger.
package voicemesh

import (
	"context"

	"github.com/mindbots/voicemesh/agent"
	"github.com/mindbots/voicemesh/core"
	"github.com/mindbots/voicemesh/logging"
	"github.com/mindbots/voicemesh/memory"
	"github.com/mindbots/voicemesh/model"
	"github.com/mindbots/voicemesh/session"
	"github.com/mindbots/voicemesh/stt"
	"github.com/mindbots/voicemesh/tts"
	"github.com/mindbots/voicemesh/turn"
	"github.com/mindbots/voicemesh/vad"
	"github.com/mindbots/voicemesh/voice"
)

// Options configures the VoiceMesh instance.
type Options struct {
	// Model generates agent replies. Required.
	Model model.Model

	// STT transcribes user speech. Required.
	STT stt.STT

	// TTS synthesizes agent replies. Required.
	TTS tts.TTS

	// VAD segments room audio into utterances. Defaults to the energy detector.
	VAD vad.Detector

	// TurnDetector decides when the user finished speaking. Defaults to the
	// heuristic detector.
	TurnDetector turn.Detector

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore core.SessionStore
	MemoryStore  core.MemoryStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// VoiceMesh is the high-level façade aggregating the pipeline components and
// services shared by every session it creates.
type VoiceMesh struct {
	opts Options
}

// New creates a new VoiceMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *VoiceMesh {
	opts := Options{
		VAD:          vad.NewEnergyDetector(),
		TurnDetector: turn.NewHeuristicDetector(),
		SessionStore: session.NewInMemoryStore(),
		MemoryStore:  memory.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &VoiceMesh{opts: opts}
}

// NewAgentSession builds a session wired with the mesh components. Further
// per-session overrides can be applied through optFns.
func (m *VoiceMesh) NewAgentSession(optFns ...func(o *voice.Options)) *voice.AgentSession {
	fns := append([]func(o *voice.Options){func(o *voice.Options) {
		o.Model = m.opts.Model
		o.STT = m.opts.STT
		o.TTS = m.opts.TTS
		o.VAD = m.opts.VAD
		o.TurnDetector = m.opts.TurnDetector
		o.SessionStore = m.opts.SessionStore
		o.MemoryStore = m.opts.MemoryStore
		o.Logger = m.opts.Logger
	}}, optFns...)

	return voice.NewAgentSession(fns...)
}

// StartSession creates a session for the persona and starts it in the room.
func (m *VoiceMesh) StartSession(ctx context.Context, a *agent.Agent, room voice.Room) (*voice.AgentSession, error) {
	s := m.NewAgentSession()
	if err := s.Start(ctx, a, room); err != nil {
		return nil, err
	}
	return s, nil
}
