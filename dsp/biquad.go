package dsp

import "math"

// Biquad is a second-order IIR filter, Direct Form I. Process allocates
// nothing.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 float32
	y1, y2 float32
}

// NewBiquad creates a biquad from normalized coefficients.
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{b0: b0, b1: b1, b2: b2, a1: a1, a2: a2}
}

// Process filters one sample.
func (b *Biquad) Process(input float32) float32 {
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output
	return output
}

// ProcessBlock filters samples in place.
func (b *Biquad) ProcessBlock(samples []float32) {
	for i, s := range samples {
		samples[i] = b.Process(s)
	}
}

// Reset clears the filter state.
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// NewHighpass creates an RBJ highpass biquad.
func NewHighpass(cutoff, sampleRate, q float32) *Biquad {
	w0 := 2.0 * math.Pi * float64(cutoff) / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * float64(q))
	cosw0 := math.Cos(w0)

	b0 := (1.0 + cosw0) / 2.0
	b1 := -(1.0 + cosw0)
	b2 := (1.0 + cosw0) / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha

	return NewBiquad(
		float32(b0/a0),
		float32(b1/a0),
		float32(b2/a0),
		float32(a1/a0),
		float32(a2/a0),
	)
}

// NewDCBlocker creates a gentle 20 Hz highpass for hardware audio inputs.
// Cheap interfaces ride a few millivolts of DC that would otherwise leak
// into the k=0-adjacent Goertzel bins of the low strings.
func NewDCBlocker(sampleRate int) *Biquad {
	return NewHighpass(20.0, float32(sampleRate), 0.707)
}
