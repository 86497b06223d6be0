// Package turn provides end-of-utterance detection: given a final transcript
// it estimates how likely the user is done talking, and maps that estimate
// to an endpointing delay. The bundled HeuristicDetector is text based; a
// model backed detector can implement the same contract.
package turn

import (
	"context"
	"strings"
	"time"
)

// Detector predicts whether a user turn has ended. How a probability maps to
// a delay is the implementation's business; the session only asks for the
// estimate and the wait.
type Detector interface {
	// PredictEndOfTurn returns the probability (0..1) that the transcript is
	// a complete utterance.
	PredictEndOfTurn(ctx context.Context, transcript string) (float64, error)

	// Delay maps a probability to the endpointing delay the session should
	// wait before replying.
	Delay(probability float64) time.Duration
}

// Options configure the heuristic detector.
type Options struct {
	// Threshold separating likely-complete from likely-incomplete turns.
	Threshold float64

	// MinEndpointingDelay applies when a turn is likely complete.
	MinEndpointingDelay time.Duration

	// MaxEndpointingDelay applies when a turn is likely incomplete.
	MaxEndpointingDelay time.Duration
}

// HeuristicDetector scores transcripts from surface features: terminal
// punctuation raises the estimate, trailing conjunctions and filler words
// lower it. Deterministic and dependency free.
type HeuristicDetector struct {
	opts Options
}

// NewHeuristicDetector creates a detector with conversational defaults.
func NewHeuristicDetector(optFns ...func(o *Options)) *HeuristicDetector {
	opts := Options{
		Threshold:           0.6,
		MinEndpointingDelay: 500 * time.Millisecond,
		MaxEndpointingDelay: 3 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &HeuristicDetector{opts: opts}
}

// trailers that signal the speaker intends to continue.
var continuations = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "because": true,
	"uh": true, "um": true, "er": true, "like": true, "the": true, "a": true,
}

// PredictEndOfTurn implements Detector.
func (d *HeuristicDetector) PredictEndOfTurn(_ context.Context, transcript string) (float64, error) {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return 0, nil
	}

	p := 0.5

	switch {
	case strings.HasSuffix(text, "?"), strings.HasSuffix(text, "!"), strings.HasSuffix(text, "."):
		p += 0.4
	case strings.HasSuffix(text, ","), strings.HasSuffix(text, "-"):
		p -= 0.3
	}

	words := strings.Fields(strings.ToLower(strings.Trim(text, ".!?,-")))
	if len(words) > 0 && continuations[words[len(words)-1]] {
		p -= 0.35
	}

	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	return p, nil
}

// UnlikelyThreshold is the probability boundary Delay uses: estimates below
// it get the longer endpointing delay.
func (d *HeuristicDetector) UnlikelyThreshold() float64 { return d.opts.Threshold }

// Delay implements Detector.
func (d *HeuristicDetector) Delay(probability float64) time.Duration {
	if probability >= d.opts.Threshold {
		return d.opts.MinEndpointingDelay
	}
	return d.opts.MaxEndpointingDelay
}
