// Package audio holds the stateful per-frame audio processors: rolling
// window + Mel FFT smoothing, onset/beat, pitch, and idle/dead detection.
// Each processor owns its own internal filters and is blind to the others;
// they only communicate through the blackboard.
package audio

import "github.com/partylights/partylights-go/internal/blackboard"

// Processor transforms one frame of raw audio (or none, on an underrun)
// into blackboard fields. On a missing frame, a Processor must publish its
// declared fields as absent/zero and leave its internal state untouched,
// so the next successful frame resumes cleanly.
type Processor interface {
	Process(bb *blackboard.Board)
}

// Chain runs every processor in order against one blackboard, the shape
// the scheduler's audio task drives each frame.
type Chain []Processor

// Run executes every processor in sequence.
func (c Chain) Run(bb *blackboard.Board) {
	for _, p := range c {
		p.Process(bb)
	}
}
