package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// HammingWindow returns a Hamming window of length n.
func HammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// RFFTMagnitude zero-pads x to the next power of two and returns the
// magnitude of the first half of its real FFT (DC through Nyquist,
// exclusive of the mirrored upper half) — the Go equivalent of
// np.abs(np.fft.rfft(x)).
func RFFTMagnitude(x []float64) []float64 {
	n := NextPowerOfTwo(len(x))
	padded := make([]float64, n)
	copy(padded, x)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, padded)

	half := n/2 + 1
	out := make([]float64, half)
	for i := 0; i < half; i++ {
		out[i] = cmplx.Abs(coeffs[i])
	}
	return out
}
