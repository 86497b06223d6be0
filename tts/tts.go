// Package tts defines the text-to-speech contract used by the voice session
// plus an in-memory fake for tests.
package tts

import (
	"context"

	"github.com/mindbots/voicemesh/rtc"
)

// TTS synthesizes speech audio from text.
type TTS interface {
	// Synthesize renders the text as a single PCM frame.
	Synthesize(ctx context.Context, text string) (rtc.AudioFrame, error)

	// Voice names the configured voice for logs and metrics.
	Voice() string

	// SampleRate is the PCM rate of synthesized frames.
	SampleRate() int
}

// FakeTTS produces silent audio proportional to the input length. Useful for
// session tests and examples without network access.
type FakeTTS struct {
	rate int
}

// NewFakeTTS creates a fake synthesizer at 16kHz.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{rate: 16000}
}

// Synthesize implements TTS; 50ms of silence per character.
func (f *FakeTTS) Synthesize(ctx context.Context, text string) (rtc.AudioFrame, error) {
	samples := len(text) * f.rate / 20
	if samples == 0 {
		samples = f.rate / 20
	}
	return rtc.NewAudioFrame(f.rate, 1, samples), nil
}

// Voice implements TTS.
func (f *FakeTTS) Voice() string { return "fake" }

// SampleRate implements TTS.
func (f *FakeTTS) SampleRate() int { return f.rate }
