// Package dsp holds the small signal-processing primitives shared by the
// bar estimator, the string detector, and the audio input paths.
package dsp

import "math"

// Goertzel computes the magnitude of a single frequency bin over the given
// samples. Much cheaper than an FFT when only a handful of frequencies are
// needed; the detector and bar estimator probe exact expected frequencies,
// never whole spectra.
func Goertzel(samples []float32, freq, sampleRate float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	k := math.Round(freq * float64(n) / sampleRate)
	w := 2.0 * math.Pi * k / float64(n)
	coeff := 2.0 * math.Cos(w)
	var s1, s2 float64
	for _, sample := range samples {
		s0 := float64(sample) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return math.Sqrt(math.Abs(s1*s1 + s2*s2 - coeff*s1*s2))
}

// RMS returns the root mean square of an audio buffer.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float32
	for _, s := range samples {
		sum += s * s
	}
	return float32(math.Sqrt(float64(sum / float32(len(samples)))))
}
