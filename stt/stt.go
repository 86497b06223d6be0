// Package stt defines the speech-to-text contract used by the voice session
// plus an in-memory fake for tests. One Stream covers one user utterance:
// the session opens a stream when speech starts, pushes frames while the
// user talks and closes the send side when speech ends, after which the
// final transcript event is delivered.
package stt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mindbots/voicemesh/rtc"
)

// SpeechEventType labels stream events.
type SpeechEventType string

const (
	// SpeechEventInterim is a provisional transcript that may still change.
	SpeechEventInterim SpeechEventType = "interim"
	// SpeechEventFinal is the definitive transcript for the utterance.
	SpeechEventFinal SpeechEventType = "final"
	// SpeechEventError reports a terminal recognition failure.
	SpeechEventError SpeechEventType = "error"
)

// SpeechEvent is one recognition result (or error) from a Stream.
type SpeechEvent struct {
	Type          SpeechEventType
	Text          string
	Language      string
	Confidence    float64
	AudioDuration time.Duration // recognized audio length, feeds STT metrics
	Err           error
}

// Capabilities describes what a recognizer supports.
type Capabilities struct {
	Streaming      bool // true when interim results are produced while audio arrives
	InterimResults bool
}

// STT is a speech recognizer factory.
type STT interface {
	// NewStream opens a recognition stream for a single utterance.
	NewStream(ctx context.Context) (Stream, error)

	// Capabilities reports recognizer features.
	Capabilities() Capabilities

	// Provider names the backing service for logs and metrics.
	Provider() string
}

// Stream accepts audio for one utterance and emits speech events.
type Stream interface {
	// Push appends an audio frame. Returns an error after CloseSend.
	Push(frame rtc.AudioFrame) error

	// Events returns the event channel. It is closed after the final (or
	// error) event once CloseSend has been called.
	Events() <-chan SpeechEvent

	// CloseSend marks the end of the utterance and triggers finalization.
	CloseSend() error
}

// FakeSTT replays scripted transcripts, one per stream, in order. Useful for
// session tests and examples without network access.
type FakeSTT struct {
	mu      sync.Mutex
	scripts []string
	next    int
}

// NewFakeSTT creates a fake recognizer that yields the given transcripts.
func NewFakeSTT(transcripts ...string) *FakeSTT {
	return &FakeSTT{scripts: transcripts}
}

// NewStream implements STT.
func (f *FakeSTT) NewStream(ctx context.Context) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text := ""
	if f.next < len(f.scripts) {
		text = f.scripts[f.next]
		f.next++
	}

	return &fakeStream{text: text, events: make(chan SpeechEvent, 4)}, nil
}

// Capabilities implements STT.
func (f *FakeSTT) Capabilities() Capabilities {
	return Capabilities{Streaming: false, InterimResults: false}
}

// Provider implements STT.
func (f *FakeSTT) Provider() string { return "fake" }

type fakeStream struct {
	text   string
	events chan SpeechEvent
	audio  time.Duration
	closed bool
	mu     sync.Mutex
}

func (s *fakeStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream closed")
	}
	s.audio += frame.Duration()
	return nil
}

func (s *fakeStream) Events() <-chan SpeechEvent { return s.events }

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.events <- SpeechEvent{
		Type:          SpeechEventFinal,
		Text:          s.text,
		Language:      "en",
		Confidence:    1.0,
		AudioDuration: s.audio,
	}
	close(s.events)
	return nil
}
