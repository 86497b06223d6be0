// Package openai adapts the OpenAI speech synthesis API to the tts contract.
// Audio is requested as raw PCM so frames can be published to a room without
// container parsing.
package openai

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"

	"github.com/mindbots/voicemesh/rtc"
)

// pcmSampleRate is the fixed rate of the API's PCM response format.
const pcmSampleRate = 24000

// Options configure the OpenAI synthesizer.
type Options struct {
	Model openai.SpeechModel
	Voice openai.AudioSpeechNewParamsVoice
	Speed float64
}

// TTS synthesizes speech via the OpenAI audio API.
type TTS struct {
	client *openai.Client
	opts   Options
}

// NewTTS creates a synthesizer using the default OpenAI client.
func NewTTS(optFns ...func(o *Options)) *TTS {
	client := openai.NewClient()
	return NewTTSFromClient(&client, optFns...)
}

// NewTTSFromClient creates a synthesizer from an existing client.
func NewTTSFromClient(client *openai.Client, optFns ...func(o *Options)) *TTS {
	opts := Options{
		Model: openai.SpeechModelTTS1,
		Voice: openai.AudioSpeechNewParamsVoice("fable"),
		Speed: 1.0,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &TTS{client: client, opts: opts}
}

// Synthesize implements tts.TTS.
func (t *TTS) Synthesize(ctx context.Context, text string) (rtc.AudioFrame, error) {
	resp, err := t.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          t.opts.Model,
		Voice:          t.opts.Voice,
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
		Speed:          openai.Float(t.opts.Speed),
	})
	if err != nil {
		return rtc.AudioFrame{}, fmt.Errorf("openai speech api error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return rtc.AudioFrame{}, fmt.Errorf("read speech response: %w", err)
	}

	return rtc.AudioFrame{
		Data:              data,
		SampleRate:        pcmSampleRate,
		NumChannels:       1,
		SamplesPerChannel: len(data) / 2,
	}, nil
}

// Voice implements tts.TTS.
func (t *TTS) Voice() string { return fmt.Sprintf("openai/%s", t.opts.Voice) }

// SampleRate implements tts.TTS.
func (t *TTS) SampleRate() int { return pcmSampleRate }
