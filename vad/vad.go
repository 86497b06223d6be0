// Package vad provides voice activity detection over PCM audio frames. The
// Detector contract is channel based: feed frames in, receive speech
// start/end events out. The bundled EnergyDetector is a lightweight RMS
// threshold implementation suitable for prewarming in a worker process.
package vad

import (
	"context"
	"math"
	"time"

	"github.com/mindbots/voicemesh/rtc"
)

// EventType labels detector events.
type EventType string

const (
	// EventSpeechStart is emitted once when sustained speech begins.
	EventSpeechStart EventType = "speech_start"
	// EventSpeechEnd is emitted once when sustained silence follows speech.
	EventSpeechEnd EventType = "speech_end"
)

// Event is one detector transition.
type Event struct {
	Type           EventType
	Probability    float64       // detector confidence at the transition
	Timestamp      time.Duration // audio time since detection started
	SpeechDuration time.Duration // on speech end: length of the finished segment
}

// Detector consumes a frame stream and emits speech transitions. The event
// channel closes when the frame channel closes or the context is cancelled.
type Detector interface {
	Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan Event, error)
}

// Options configure the energy detector.
type Options struct {
	// Threshold is the normalized RMS level treated as speech (0..1).
	Threshold float64

	// MinSpeechDuration is how long audio must stay above the threshold
	// before a speech start is emitted. Filters out clicks.
	MinSpeechDuration time.Duration

	// MinSilenceDuration is how long audio must stay below the threshold
	// before the segment ends. Tolerates short intra-utterance pauses.
	MinSilenceDuration time.Duration
}

// EnergyDetector implements Detector with a per-frame RMS state machine.
type EnergyDetector struct {
	opts Options
}

// NewEnergyDetector creates a detector with sensible speech defaults.
func NewEnergyDetector(optFns ...func(o *Options)) *EnergyDetector {
	opts := Options{
		Threshold:          0.02,
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: 500 * time.Millisecond,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &EnergyDetector{opts: opts}
}

// Detect implements Detector.
func (d *EnergyDetector) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan Event, error) {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		var (
			clock       time.Duration // audio time processed
			inSpeech    bool
			aboveSince  time.Duration
			belowSince  time.Duration
			speechStart time.Duration
			pendingUp   bool
			pendingDown bool
		)

		emit := func(ev Event) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- ev:
				return true
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					// Flush a trailing open segment so callers always see the end.
					if inSpeech {
						emit(Event{Type: EventSpeechEnd, Probability: 1, Timestamp: clock, SpeechDuration: clock - speechStart})
					}
					return
				}

				level := rms(frame)
				clock += frame.Duration()

				if level >= d.opts.Threshold {
					if !pendingUp {
						pendingUp = true
						aboveSince = clock
					}
					pendingDown = false

					if !inSpeech && clock-aboveSince+frame.Duration() >= d.opts.MinSpeechDuration {
						inSpeech = true
						speechStart = aboveSince
						if !emit(Event{Type: EventSpeechStart, Probability: probability(level, d.opts.Threshold), Timestamp: clock}) {
							return
						}
					}
				} else {
					if !pendingDown {
						pendingDown = true
						belowSince = clock
					}
					pendingUp = false

					if inSpeech && clock-belowSince+frame.Duration() >= d.opts.MinSilenceDuration {
						inSpeech = false
						if !emit(Event{Type: EventSpeechEnd, Probability: probability(level, d.opts.Threshold), Timestamp: clock, SpeechDuration: belowSince - speechStart}) {
							return
						}
					}
				}
			}
		}
	}()

	return out, nil
}

// rms computes the normalized root mean square level of a PCM16 frame (0..1).
func rms(frame rtc.AudioFrame) float64 {
	samples := frame.Samples()
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// probability maps an RMS level to a rough confidence relative to the threshold.
func probability(level, threshold float64) float64 {
	if threshold <= 0 {
		return 1
	}
	p := level / (threshold * 2)
	if p > 1 {
		p = 1
	}
	return p
}
