package dsp

import "math"

// SineWave generates a mono sine at the given amplitude. The length is
// ms milliseconds at the given sample rate.
func SineWave(freqHz, amp float64, sampleRate, ms int) []float32 {
	n := sampleRate * ms / 1000
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2.0*math.Pi*freqHz*float64(i)/float64(sampleRate)))
	}
	return out
}

// MultiSine generates a mix of sines at equal amplitude per voice.
func MultiSine(freqs []float64, ampPerVoice float64, sampleRate, ms int) []float32 {
	n := sampleRate * ms / 1000
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var sum float64
		for _, f := range freqs {
			sum += ampPerVoice * math.Sin(2.0*math.Pi*f*t)
		}
		out[i] = float32(sum)
	}
	return out
}
