package audio

import (
	"testing"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
)

func TestIdleProcessorTracksSinceFirstBelowThreshold(t *testing.T) {
	p := NewIdleProcessor(DefaultIdleConfig())
	start := time.Now()

	bb := blackboard.New(start)
	bb.Audio = []float64{0.01, 0.01}
	p.Process(bb)
	if bb.IdleFor == nil || *bb.IdleFor != 0 {
		t.Fatalf("IdleFor at first below-threshold frame = %v, want 0", bb.IdleFor)
	}

	bb2 := blackboard.New(start.Add(2 * time.Second))
	bb2.Audio = []float64{0.01, 0.01}
	p.Process(bb2)
	if bb2.IdleFor == nil || *bb2.IdleFor != 2*time.Second {
		t.Fatalf("IdleFor after 2s = %v, want 2s", bb2.IdleFor)
	}

	bb3 := blackboard.New(start.Add(3 * time.Second))
	bb3.Audio = []float64{0.9, 0.9}
	p.Process(bb3)
	if bb3.IdleFor != nil {
		t.Fatalf("IdleFor should reset once above threshold, got %v", bb3.IdleFor)
	}
}

func TestIdleProcessorNoAudioLeavesStateUntouched(t *testing.T) {
	p := NewIdleProcessor(DefaultIdleConfig())
	bb := blackboard.New(time.Now())
	// Audio absent (driver underrun upstream) — both fields stay nil.
	p.Process(bb)
	if bb.IdleFor != nil || bb.DeadFor != nil {
		t.Error("absent audio should publish nil idle/dead fields")
	}
}
