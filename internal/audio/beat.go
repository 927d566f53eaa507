package audio

import (
	"github.com/partylights/partylights-go/internal/blackboard"
)

// BeatConfig parameterizes BeatProcessor.
type BeatConfig struct {
	SampleRate float64
	FPS        float64
}

// BeatProcessor detects onsets and beats from the raw capture frame using
// a windowed energy/flux detector. The source implementation delegates to
// aubio's "energy" onset and "hfc" tempo detectors, both C-library
// bindings with no pure-Go equivalent in the retrieval pack; this
// reimplements the same publishable contract (is_onset, is_beat) with a
// self-contained energy-flux detector instead of linking aubio.
type BeatProcessor struct {
	history      []float64 // recent per-hop energies, most recent last
	historyLen   int
	lastWasOnset bool
}

// NewBeatProcessor returns a processor holding roughly one second of
// energy history for its adaptive threshold.
func NewBeatProcessor(cfg BeatConfig) *BeatProcessor {
	n := int(cfg.FPS)
	if n < 4 {
		n = 4
	}
	return &BeatProcessor{historyLen: n}
}

// Process implements Processor.
func (p *BeatProcessor) Process(bb *blackboard.Board) {
	bb.IsOnset = false
	bb.IsBeat = false
	if bb.RawAudio == nil {
		return
	}

	var energy float64
	for _, s := range bb.RawAudio {
		v := float64(s) / 32768.0
		energy += v * v
	}
	energy /= float64(len(bb.RawAudio))

	p.history = append(p.history, energy)
	if len(p.history) > p.historyLen {
		p.history = p.history[len(p.history)-p.historyLen:]
	}

	avg := mean(p.history)
	threshold := avg * 1.5

	isOnset := energy > threshold && energy > 1e-6
	bb.IsOnset = isOnset

	// A beat is an onset whose previous hop was not an onset — a cheap
	// stand-in for tempo tracking that still rejects sustained noise.
	if isOnset && !p.lastWasOnset {
		bb.IsBeat = true
	}
	p.lastWasOnset = isOnset
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
