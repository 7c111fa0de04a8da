// Package detector decides which strings are sounding. Because the copedant
// state and bar position are known at every moment, the expected frequency
// of each string is known exactly, which turns blind polyphonic pitch
// detection into a matched-filter problem: probe a Goertzel bin at each
// expected fundamental and compare against a threshold.
package detector

import (
	"github.com/cwbudde/steel-capture/bar"
	"github.com/cwbudde/steel-capture/copedant"
	"github.com/cwbudde/steel-capture/dsp"
)

const (
	// harmonicWeight folds in the 2nd harmonic: real strings have strong
	// even harmonics, noise does not, so the harmonic confirms string
	// identity without dominating the score.
	harmonicWeight = 0.3
	// silenceRMS is the global floor. RMS below this is indistinguishable
	// from quantization noise on a typical audio interface.
	silenceRMS = 0.003

	defaultOnset   = 0.02
	defaultRelease = 0.008
)

// Detector tracks per-string smoothed spectral energy with onset/release
// hysteresis. The gap between the two thresholds prevents chattering on
// signals hovering near either one.
type Detector struct {
	energy [copedant.NumStrings]float64
	peak   [copedant.NumStrings]float64
	active [copedant.NumStrings]bool

	onset     [copedant.NumStrings]float64
	release   [copedant.NumStrings]float64
	smoothing float64

	audioBuf             []float32
	analysisWindow       int
	samplesSinceAnalysis int
	analysisInterval     int
	sampleRate           int
}

// New returns a detector with default thresholds and the 4096-sample
// analysis window (~85ms at 48 kHz) re-analyzed every 2048 samples.
func New() *Detector {
	d := &Detector{
		smoothing:        0.6,
		audioBuf:         make([]float32, 0, 8192),
		analysisWindow:   4096,
		analysisInterval: 2048,
		sampleRate:       48000,
	}
	for i := range d.onset {
		d.onset[i] = defaultOnset
		d.release[i] = defaultRelease
		d.peak[i] = 0.01
	}
	return d
}

// WithThresholds overrides the per-string detection thresholds, e.g. from a
// calibration file.
func (d *Detector) WithThresholds(onset, release [copedant.NumStrings]float64) *Detector {
	d.onset = onset
	d.release = release
	return d
}

// PushAudio appends samples to the analysis buffer.
func (d *Detector) PushAudio(samples []float32, sampleRate int) {
	d.sampleRate = sampleRate
	d.audioBuf = append(d.audioBuf, samples...)
	d.samplesSinceAnalysis += len(samples)

	maxLen := d.analysisWindow * 2
	if len(d.audioBuf) > maxLen {
		excess := len(d.audioBuf) - maxLen
		d.audioBuf = append(d.audioBuf[:0], d.audioBuf[excess:]...)
	}
}

func (d *Detector) ready() bool {
	return len(d.audioBuf) >= d.analysisWindow &&
		d.samplesSinceAnalysis >= d.analysisInterval
}

// Active returns the current per-string active state.
func (d *Detector) Active() [copedant.NumStrings]bool { return d.active }

// Energies returns the smoothed per-string spectral energies.
func (d *Detector) Energies() [copedant.NumStrings]float64 { return d.energy }

// Detect analyzes buffered audio and updates per-string states.
//
// attacks[i] is true only on the call where string i transitions from
// inactive to active. An absent bar position means the expected frequencies
// are unknown, so every string is forced inactive. When too little audio
// has accumulated since the last analysis, the previous state is returned
// with no new attacks.
func (d *Detector) Detect(ctl copedant.Controls, barEst bar.Estimate, eng *copedant.Engine) (active, attacks [copedant.NumStrings]bool, amplitude [copedant.NumStrings]float32) {
	if !d.ready() {
		return d.active, attacks, d.amplitude()
	}
	d.samplesSinceAnalysis = 0

	if !barEst.Present {
		d.active = [copedant.NumStrings]bool{}
		d.energy = [copedant.NumStrings]float64{}
		return d.active, attacks, amplitude
	}

	samples := d.audioBuf[len(d.audioBuf)-d.analysisWindow:]
	sr := float64(d.sampleRate)

	if dsp.RMS(samples) < silenceRMS {
		for i := range d.energy {
			d.energy[i] *= 0.5
		}
		d.active = [copedant.NumStrings]bool{}
		return d.active, attacks, d.amplitude()
	}

	open := eng.EffectiveOpenPitches(ctl)
	n := float64(len(samples))

	for si := range open {
		freq := copedant.MIDIToHz(open[si] + float64(barEst.Position))
		if freq < 20.0 || freq > sr/2.0 {
			d.energy[si] = 0
			d.active[si] = false
			continue
		}

		mag := dsp.Goertzel(samples, freq, sr)
		var mag2 float64
		if freq*2.0 < sr/2.0 {
			mag2 = dsp.Goertzel(samples, freq*2.0, sr)
		}

		// Normalize by window length for level-independent thresholds.
		normalized := (mag + harmonicWeight*mag2) / n

		d.energy[si] = d.energy[si]*d.smoothing + normalized*(1.0-d.smoothing)

		// Peak tracking adapts over ~3.6s at the ~24 Hz analysis rate.
		if d.energy[si] > d.peak[si] {
			d.peak[si] = d.energy[si]
		} else {
			d.peak[si] *= 0.992
			if d.peak[si] < 0.01 {
				d.peak[si] = 0.01
			}
		}

		if d.active[si] {
			if d.energy[si] < d.release[si] {
				d.active[si] = false
			}
		} else if d.energy[si] > d.onset[si] {
			d.active[si] = true
			attacks[si] = true
		}
	}

	return d.active, attacks, d.amplitude()
}

// amplitude is the per-string energy normalized against the tracked peak.
func (d *Detector) amplitude() [copedant.NumStrings]float32 {
	var out [copedant.NumStrings]float32
	for i := range out {
		v := d.energy[i] / d.peak[i]
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[i] = float32(v)
	}
	return out
}

// Reset clears all state, including buffered audio.
func (d *Detector) Reset() {
	d.energy = [copedant.NumStrings]float64{}
	d.active = [copedant.NumStrings]bool{}
	for i := range d.peak {
		d.peak[i] = 0.01
	}
	d.audioBuf = d.audioBuf[:0]
	d.samplesSinceAnalysis = 0
}
