// Package rtc provides the realtime media surface of VoiceMesh: PCM audio
// frames, WAV encoding helpers and a websocket Room client carrying signaling
// plus audio between the agent process and a media server.
package rtc

import "time"

// AudioFrame is a chunk of 16-bit signed little-endian PCM audio.
type AudioFrame struct {
	Data              []byte // Raw PCM16LE bytes, len = SamplesPerChannel * NumChannels * 2
	SampleRate        int    // Samples per second per channel
	NumChannels       int    // Interleaved channel count
	SamplesPerChannel int    // Samples per channel in this frame
}

// NewAudioFrame allocates a zeroed frame with the given geometry.
func NewAudioFrame(sampleRate, numChannels, samplesPerChannel int) AudioFrame {
	return AudioFrame{
		Data:              make([]byte, samplesPerChannel*numChannels*2),
		SampleRate:        sampleRate,
		NumChannels:       numChannels,
		SamplesPerChannel: samplesPerChannel,
	}
}

// Duration returns the play time of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

// Samples decodes the interleaved PCM bytes into int16 samples.
func (f AudioFrame) Samples() []int16 {
	n := len(f.Data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(f.Data[2*i]) | int16(f.Data[2*i+1])<<8
	}
	return samples
}
