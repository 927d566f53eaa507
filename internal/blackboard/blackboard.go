// Package blackboard defines the per-frame data exchanged between scheduler tasks.
package blackboard

import "time"

// Board is the typed per-frame mapping passed by reference through the task
// pipeline. A new Board is constructed at the start of every frame and
// discarded at its end; tasks read fields published by earlier stages and
// write the fields they own.
type Board struct {
	// FrameTime is the wall-clock instant the scheduler began this frame.
	FrameTime time.Time

	// RawAudio is the mono int16 capture frame for this tick, or nil on a
	// driver underrun.
	RawAudio []int16

	// Audio is the smoothed Mel-band energy vector published by the
	// smoothing processor: all zeros when volume is below threshold, nil
	// when audio is absent.
	Audio []float64

	// IsOnset and IsBeat are published by the beat processor.
	IsOnset bool
	IsBeat  bool

	// Pitch is the averaged MIDI pitch estimate, nil until three confident
	// samples have accumulated.
	Pitch *float64

	// IdleFor and DeadFor report how long the signal has been below
	// threshold / exactly zero, nil while active.
	IdleFor *time.Duration
	DeadFor *time.Duration

	// AudioVSum and AudioVAvg are the raw idle-detector accumulators,
	// republished every frame regardless of idle state.
	AudioVSum float64
	AudioVAvg float64

	// RenderedState is the post-lights.run snapshot of every light's
	// current DMX-facing state, attached for the broker/ops surfaces.
	RenderedState map[string]map[string]int
}

// New returns a zeroed Board stamped with the given frame time.
func New(at time.Time) *Board {
	return &Board{FrameTime: at}
}
