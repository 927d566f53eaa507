package audio

import (
	"github.com/partylights/partylights-go/internal/audio/dsp"
	"github.com/partylights/partylights-go/internal/blackboard"
)

// SmoothingConfig parameterizes SmoothingProcessor.
type SmoothingConfig struct {
	SampleRate         float64
	FPS                float64
	RollingHistory     int
	FFTBins            int
	MinFrequency       float64
	MaxFrequency       float64
	MinVolumeThreshold float64
}

// DefaultSmoothingConfig returns the spec's documented defaults.
func DefaultSmoothingConfig(sampleRate, fps float64) SmoothingConfig {
	return SmoothingConfig{
		SampleRate:         sampleRate,
		FPS:                fps,
		RollingHistory:     2,
		FFTBins:            24,
		MinFrequency:       200,
		MaxFrequency:       12000,
		MinVolumeThreshold: 1e-7,
	}
}

// SmoothingProcessor implements component C's rolling-window Mel/FFT
// smoothing pipeline.
type SmoothingProcessor struct {
	cfg SmoothingConfig

	samplesPerFrame int
	window          []float64
	melBank         [][]float64

	rollRows [][]float64 // rolling_history x samplesPerFrame, oldest first

	gain      *dsp.ExpFilter
	smoothing *dsp.ExpFilter
}

// NewSmoothingProcessor builds the processor's Mel filterbank and window
// once at startup from cfg.
func NewSmoothingProcessor(cfg SmoothingConfig) *SmoothingProcessor {
	samplesPerFrame := int(cfg.SampleRate / cfg.FPS)
	windowLen := samplesPerFrame * cfg.RollingHistory
	numFFTBins := dsp.NextPowerOfTwo(windowLen)/2 + 1

	rows := make([][]float64, cfg.RollingHistory)
	for i := range rows {
		rows[i] = make([]float64, samplesPerFrame)
	}

	return &SmoothingProcessor{
		cfg:             cfg,
		samplesPerFrame: samplesPerFrame,
		window:          dsp.HammingWindow(windowLen),
		melBank:         dsp.MelFilterbank(cfg.FFTBins, numFFTBins, cfg.SampleRate, cfg.MinFrequency, cfg.MaxFrequency),
		rollRows:        rows,
		gain:            dsp.NewExpFilter(1e-1, 0.99, 0.01, 1),
		smoothing:       dsp.NewExpFilter(1e-1, 0.99, 0.5, cfg.FFTBins),
	}
}

// Process implements Processor.
func (p *SmoothingProcessor) Process(bb *blackboard.Board) {
	bb.Audio = nil
	if bb.RawAudio == nil {
		return
	}

	// Shift the rolling window left and write the newest frame.
	copy(p.rollRows, p.rollRows[1:])
	newest := make([]float64, p.samplesPerFrame)
	for i, s := range bb.RawAudio {
		if i >= p.samplesPerFrame {
			break
		}
		newest[i] = float64(s) / 32768.0
	}
	p.rollRows[len(p.rollRows)-1] = newest

	flat := make([]float64, 0, p.samplesPerFrame*p.cfg.RollingHistory)
	for _, row := range p.rollRows {
		flat = append(flat, row...)
	}

	maxAbs := 0.0
	for _, v := range flat {
		if a := abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs < p.cfg.MinVolumeThreshold {
		bb.Audio = make([]float64, p.cfg.FFTBins)
		return
	}

	windowed := make([]float64, len(flat))
	for i, v := range flat {
		windowed[i] = v * p.window[i]
	}

	spectrum := dsp.RFFTMagnitude(windowed)
	mel := dsp.Apply(p.melBank, spectrum)
	for i := range mel {
		mel[i] *= mel[i]
	}

	blurred := dsp.GaussianBlur1D(mel, 1.0)
	maxBlurred := 0.0
	for _, v := range blurred {
		if v > maxBlurred {
			maxBlurred = v
		}
	}
	gain := p.gain.UpdateScalar(maxBlurred)
	if gain == 0 {
		gain = 1e-9
	}
	for i := range mel {
		mel[i] /= gain
	}

	smoothed := p.smoothing.Update(mel)
	out := make([]float64, len(smoothed))
	copy(out, smoothed)
	bb.Audio = out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
