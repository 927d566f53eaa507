package lightengine

import "github.com/partylights/partylights-go/internal/fixture"

// Effect is one active time-bounded interpolation of a single light
// function, or — for speed-encoded functions — a one-shot write that lets
// the fixture itself perform the move.
type Effect struct {
	ID         string
	Sender     string
	LightName  string
	Function   string
	StartValue float64
	EndValue   float64
	DurationS  float64
	StartTimeS float64
	KeepState  bool

	SpeedConfig *fixture.SpeedRange
	OrigSpeed   *int

	IsNew       bool
	IsCancelled bool
}

// Value returns the clamped, monotone interpolated value at time now.
func (e *Effect) Value(now float64) int {
	frac := (now - e.StartTimeS) / e.DurationS
	v := e.StartValue + (e.EndValue-e.StartValue)*frac
	lo, hi := e.StartValue, e.EndValue
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return int(v)
}

// Done reports whether the effect has been cancelled or has run past its
// duration.
func (e *Effect) Done(now float64) bool {
	return e.IsCancelled || now-e.StartTimeS >= e.DurationS
}

// computeSpeed derives the one-shot "speed" byte for a speed-encoded
// function: the byte falls as durationS grows relative to fastestMS
// (reaching 0 once 255*durationS >= fastestMS), scaled by the magnitude
// of the requested move.
func computeSpeed(durationS, fastestMS, absDiff float64) int {
	clamped := 255 * durationS / fastestMS
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 255 {
		clamped = 255
	}
	return int((255 - clamped) * absDiff / 255)
}
