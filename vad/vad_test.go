package vad

import (
	"context"
	"testing"
	"time"

	"github.com/mindbots/voicemesh/rtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFrame builds a 20ms 16kHz mono frame with a constant amplitude.
func makeFrame(amplitude int16) rtc.AudioFrame {
	f := rtc.NewAudioFrame(16000, 1, 320)
	for i := 0; i < 320; i++ {
		f.Data[2*i] = byte(uint16(amplitude))
		f.Data[2*i+1] = byte(uint16(amplitude) >> 8)
	}
	return f
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for detector events")
		}
	}
}

func feed(frames chan<- rtc.AudioFrame, amplitude int16, count int) {
	for i := 0; i < count; i++ {
		frames <- makeFrame(amplitude)
	}
}

func TestEnergyDetectorSilenceProducesNoEvents(t *testing.T) {
	d := NewEnergyDetector()

	frames := make(chan rtc.AudioFrame, 64)
	events, err := d.Detect(context.Background(), frames)
	require.NoError(t, err)

	feed(frames, 0, 50) // one second of silence
	close(frames)

	assert.Empty(t, collect(t, events))
}

func TestEnergyDetectorSpeechStartAndEnd(t *testing.T) {
	d := NewEnergyDetector()

	frames := make(chan rtc.AudioFrame, 256)
	events, err := d.Detect(context.Background(), frames)
	require.NoError(t, err)

	feed(frames, 0, 10)    // 200ms silence
	feed(frames, 8000, 25) // 500ms speech
	feed(frames, 0, 40)    // 800ms silence
	close(frames)

	out := collect(t, events)
	require.Len(t, out, 2)
	assert.Equal(t, EventSpeechStart, out[0].Type)
	assert.Equal(t, EventSpeechEnd, out[1].Type)
	assert.Greater(t, out[1].SpeechDuration, 300*time.Millisecond)
}

func TestEnergyDetectorIgnoresShortBursts(t *testing.T) {
	d := NewEnergyDetector()

	frames := make(chan rtc.AudioFrame, 64)
	events, err := d.Detect(context.Background(), frames)
	require.NoError(t, err)

	feed(frames, 0, 10)
	feed(frames, 8000, 2) // 40ms click, below MinSpeechDuration
	feed(frames, 0, 30)
	close(frames)

	assert.Empty(t, collect(t, events))
}

func TestEnergyDetectorBridgesShortPauses(t *testing.T) {
	d := NewEnergyDetector()

	frames := make(chan rtc.AudioFrame, 256)
	events, err := d.Detect(context.Background(), frames)
	require.NoError(t, err)

	feed(frames, 8000, 15) // 300ms speech
	feed(frames, 0, 10)    // 200ms pause, below MinSilenceDuration
	feed(frames, 8000, 15) // 300ms speech
	close(frames)

	out := collect(t, events)
	// One segment spanning the pause, ended by the channel close flush.
	require.Len(t, out, 2)
	assert.Equal(t, EventSpeechStart, out[0].Type)
	assert.Equal(t, EventSpeechEnd, out[1].Type)
}

func TestEnergyDetectorFlushesOpenSegmentOnClose(t *testing.T) {
	d := NewEnergyDetector()

	frames := make(chan rtc.AudioFrame, 64)
	events, err := d.Detect(context.Background(), frames)
	require.NoError(t, err)

	feed(frames, 8000, 20)
	close(frames)

	out := collect(t, events)
	require.Len(t, out, 2)
	assert.Equal(t, EventSpeechEnd, out[1].Type)
}
