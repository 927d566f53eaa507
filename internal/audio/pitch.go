package audio

import (
	"math"

	"github.com/partylights/partylights-go/internal/blackboard"
)

// PitchConfig parameterizes PitchProcessor.
type PitchConfig struct {
	SampleRate float64
}

// PitchProcessor estimates a MIDI pitch per frame via a YIN-style
// difference-function autocorrelation, averaged across the last three
// confident samples. The source uses aubio's "yin" detector; this
// reimplements the same difference-function technique in pure Go since
// aubio has no Go binding in the retrieval pack.
type PitchProcessor struct {
	sampleRate float64
	buffer     []float64
}

// NewPitchProcessor returns a processor tracking a 3-sample moving average.
func NewPitchProcessor(cfg PitchConfig) *PitchProcessor {
	return &PitchProcessor{sampleRate: cfg.SampleRate}
}

const pitchBufferLen = 3

// Process implements Processor.
func (p *PitchProcessor) Process(bb *blackboard.Board) {
	bb.Pitch = nil
	if bb.RawAudio == nil {
		return
	}

	freq, confidence := yinEstimate(bb.RawAudio, p.sampleRate)
	if confidence > 0 {
		midi := freqToMIDI(freq)
		p.buffer = append(p.buffer, midi)
		if len(p.buffer) > pitchBufferLen {
			p.buffer = p.buffer[len(p.buffer)-pitchBufferLen:]
		}
	}

	if len(p.buffer) == pitchBufferLen {
		avg := mean(p.buffer)
		bb.Pitch = &avg
	}
}

func freqToMIDI(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return 69 + 12*math.Log2(freq/440.0)
}

// yinEstimate returns a fundamental frequency estimate and a confidence in
// [0,1] (0 meaning no usable pitch), using the YIN difference function
// followed by parabolic interpolation of the minimum.
func yinEstimate(samples []int16, sampleRate float64) (float64, float64) {
	n := len(samples)
	if n < 64 {
		return 0, 0
	}
	maxLag := n / 2

	x := make([]float64, n)
	for i, s := range samples {
		x[i] = float64(s) / 32768.0
	}

	diff := make([]float64, maxLag)
	for lag := 1; lag < maxLag; lag++ {
		var sum float64
		for i := 0; i < n-lag; i++ {
			d := x[i] - x[i+lag]
			sum += d * d
		}
		diff[lag] = sum
	}

	cmnd := make([]float64, maxLag)
	cmnd[0] = 1
	var running float64
	for lag := 1; lag < maxLag; lag++ {
		running += diff[lag]
		if running == 0 {
			cmnd[lag] = 1
		} else {
			cmnd[lag] = diff[lag] * float64(lag) / running
		}
	}

	const threshold = 0.15
	tau := -1
	for lag := 2; lag < maxLag; lag++ {
		if cmnd[lag] < threshold {
			for lag+1 < maxLag && cmnd[lag+1] < cmnd[lag] {
				lag++
			}
			tau = lag
			break
		}
	}
	if tau < 0 {
		return 0, 0
	}

	freq := sampleRate / float64(tau)
	confidence := 1 - cmnd[tau]
	if confidence < 0 {
		confidence = 0
	}
	return freq, confidence
}
