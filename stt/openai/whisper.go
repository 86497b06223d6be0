// Package openai adapts the OpenAI audio transcription API (Whisper) to the
// stt contract. Whisper is a batch recognizer, so audio is buffered per
// utterance and transcribed once the send side closes; no interim results
// are produced.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"

	"github.com/mindbots/voicemesh/rtc"
	"github.com/mindbots/voicemesh/stt"
)

// Options configure the Whisper recognizer.
type Options struct {
	Model    openai.AudioModel
	Language string
}

// STT buffers utterance audio and transcribes it via the OpenAI API.
type STT struct {
	client *openai.Client
	opts   Options
}

// NewSTT creates a Whisper recognizer using the default OpenAI client.
func NewSTT(optFns ...func(o *Options)) *STT {
	client := openai.NewClient()
	return NewSTTFromClient(&client, optFns...)
}

// NewSTTFromClient creates a Whisper recognizer from an existing client.
func NewSTTFromClient(client *openai.Client, optFns ...func(o *Options)) *STT {
	opts := Options{
		Model: openai.AudioModelWhisper1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &STT{client: client, opts: opts}
}

// NewStream implements stt.STT.
func (s *STT) NewStream(ctx context.Context) (stt.Stream, error) {
	return &whisperStream{
		ctx:    ctx,
		parent: s,
		events: make(chan stt.SpeechEvent, 4),
	}, nil
}

// Capabilities implements stt.STT. Whisper is batch-only.
func (s *STT) Capabilities() stt.Capabilities {
	return stt.Capabilities{Streaming: false, InterimResults: false}
}

// Provider implements stt.STT.
func (s *STT) Provider() string { return fmt.Sprintf("openai/%s", s.opts.Model) }

type whisperStream struct {
	ctx    context.Context
	parent *STT
	events chan stt.SpeechEvent

	mu     sync.Mutex
	frames []rtc.AudioFrame
	audio  time.Duration
	closed bool
}

func (ws *whisperStream) Push(frame rtc.AudioFrame) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return fmt.Errorf("stream closed")
	}
	ws.frames = append(ws.frames, frame)
	ws.audio += frame.Duration()
	return nil
}

func (ws *whisperStream) Events() <-chan stt.SpeechEvent { return ws.events }

// CloseSend transcribes the buffered audio. The API call runs in a goroutine
// so the caller is not blocked; the result arrives on Events.
func (ws *whisperStream) CloseSend() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	frames := ws.frames
	audio := ws.audio
	ws.mu.Unlock()

	go func() {
		defer close(ws.events)

		if len(frames) == 0 {
			ws.events <- stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: "", AudioDuration: 0}
			return
		}

		wav := rtc.EncodeWAV(frames)

		params := openai.AudioTranscriptionNewParams{
			Model: ws.parent.opts.Model,
			File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		}
		if ws.parent.opts.Language != "" {
			params.Language = openai.String(ws.parent.opts.Language)
		}

		resp, err := ws.parent.client.Audio.Transcriptions.New(ws.ctx, params)
		if err != nil {
			ws.events <- stt.SpeechEvent{Type: stt.SpeechEventError, Err: fmt.Errorf("whisper transcription: %w", err)}
			return
		}

		ws.events <- stt.SpeechEvent{
			Type:          stt.SpeechEventFinal,
			Text:          resp.Text,
			Language:      ws.parent.opts.Language,
			Confidence:    1.0,
			AudioDuration: audio,
		}
	}()

	return nil
}
