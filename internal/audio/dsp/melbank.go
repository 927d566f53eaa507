package dsp

import "math"

func hzToMel(hz float64) float64 {
	return 1125 * math.Log(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Exp(mel/1125) - 1)
}

// MelFilterbank returns a numBands x numFFTBins matrix of overlapping
// triangular filters spanning [minFreq, maxFreq], spaced evenly in mel
// scale the way a standard Mel spectrogram filterbank is built. Each
// filter peaks at 1 at its center frequency; rows are not normalized.
func MelFilterbank(numBands, numFFTBins int, sampleRate, minFreq, maxFreq float64) [][]float64 {
	melLo, melHi := hzToMel(minFreq), hzToMel(maxFreq)

	points := make([]float64, numBands+2)
	for i := range points {
		points[i] = melToHz(melLo + (melHi-melLo)*float64(i)/float64(numBands+1))
	}

	binFreq := func(bin int) float64 {
		return float64(bin) * sampleRate / (2 * float64(numFFTBins))
	}

	bank := make([][]float64, numBands)
	for m := 0; m < numBands; m++ {
		row := make([]float64, numFFTBins)
		lo, center, hi := points[m], points[m+1], points[m+2]
		for k := 0; k < numFFTBins; k++ {
			f := binFreq(k)
			switch {
			case f < lo || f > hi:
				row[k] = 0
			case f <= center:
				if center > lo {
					row[k] = (f - lo) / (center - lo)
				}
			default:
				if hi > center {
					row[k] = (hi - f) / (hi - center)
				}
			}
		}
		bank[m] = row
	}
	return bank
}

// Apply multiplies a magnitude spectrum through the filterbank, producing
// numBands energy values.
func Apply(bank [][]float64, spectrum []float64) []float64 {
	out := make([]float64, len(bank))
	for m, row := range bank {
		var sum float64
		n := len(row)
		if len(spectrum) < n {
			n = len(spectrum)
		}
		for k := 0; k < n; k++ {
			sum += row[k] * spectrum[k]
		}
		out[m] = sum
	}
	return out
}
