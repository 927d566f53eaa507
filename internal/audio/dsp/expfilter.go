// Package dsp implements the stateful signal-processing primitives the
// audio processors are built from: exponential smoothing, a Mel
// filterbank, and the supporting FFT/windowing helpers.
package dsp

// ExpFilter holds an asymmetric exponentially-weighted moving average: it
// rises toward a new value faster (or slower) than it decays, which is
// what gives the smoothed spectrum its characteristic "fast attack, slow
// release" feel.
type ExpFilter struct {
	state     []float64
	alphaRise float64
	alphaDecay float64
}

// NewExpFilter returns a filter seeded at val (broadcast across size
// elements) with the given rise/decay coefficients.
func NewExpFilter(val float64, alphaRise, alphaDecay float64, size int) *ExpFilter {
	state := make([]float64, size)
	for i := range state {
		state[i] = val
	}
	return &ExpFilter{state: state, alphaRise: alphaRise, alphaDecay: alphaDecay}
}

// Update applies one smoothing step over new values and returns the
// updated state (shared with internal storage — callers must not mutate
// it).
func (f *ExpFilter) Update(newValues []float64) []float64 {
	for i, v := range newValues {
		alpha := f.alphaDecay
		if v > f.state[i] {
			alpha = f.alphaRise
		}
		f.state[i] = alpha*v + (1-alpha)*f.state[i]
	}
	return f.state
}

// UpdateScalar is the single-value form of Update, for filters of size 1.
func (f *ExpFilter) UpdateScalar(v float64) float64 {
	return f.Update([]float64{v})[0]
}

// State returns the current filter state without updating it.
func (f *ExpFilter) State() []float64 {
	return f.state
}
