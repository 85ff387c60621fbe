package dsp

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Magnitudes returns |FFT(samples)| in natural (unshifted) bin order.
func Magnitudes(samples []complex64) []float64 {
	if len(samples) == 0 {
		return []float64{}
	}
	in := make([]complex128, len(samples))
	for i, v := range samples {
		in[i] = complex128(v)
	}
	coeffs := fourier.NewCmplxFFT(len(in)).Coefficients(nil, in)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
	}
	return mags
}

// FFTFreqs returns the bin center frequencies for an n-point transform at
// the given sample rate, in natural bin order: positive frequencies first,
// then the negative half.
func FFTFreqs(n int, sampleRate float64) []float64 {
	if n <= 0 {
		return []float64{}
	}
	freqs := make([]float64, n)
	step := sampleRate / float64(n)
	half := (n + 1) / 2
	for i := 0; i < half; i++ {
		freqs[i] = float64(i) * step
	}
	for i := half; i < n; i++ {
		freqs[i] = float64(i-n) * step
	}
	return freqs
}

// SortByFrequency reorders the frequency/magnitude pairs into ascending
// frequency and narrows to float32, which is what plotting consumes.
// Both slices must have equal length.
func SortByFrequency(freqs, mags []float64) ([]float32, []float32) {
	n := len(freqs)
	if n != len(mags) {
		return []float32{}, []float32{}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return freqs[idx[a]] < freqs[idx[b]] })

	outF := make([]float32, n)
	outM := make([]float32, n)
	for i, j := range idx {
		outF[i] = float32(freqs[j])
		outM[i] = float32(mags[j])
	}
	return outF, outM
}

// Spectrum computes the magnitude spectrum of the samples and returns
// frequency/magnitude pairs in ascending frequency order.
func Spectrum(samples []complex64, sampleRate float64) ([]float32, []float32) {
	mags := Magnitudes(samples)
	freqs := FFTFreqs(len(mags), sampleRate)
	return SortByFrequency(freqs, mags)
}

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	win := make([]float64, n)
	for i := 0; i < n; i++ {
		win[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return win
}

// WindowedSpectrum applies a Hamming window before the transform. The
// spectrum engine uses this to tame leakage on continuous display.
func WindowedSpectrum(samples []complex64, sampleRate float64) ([]float32, []float32) {
	if len(samples) == 0 {
		return []float32{}, []float32{}
	}
	win := Hamming(len(samples))
	windowed := make([]complex64, len(samples))
	for i, v := range samples {
		windowed[i] = v * complex64(complex(win[i], 0))
	}
	return Spectrum(windowed, sampleRate)
}
